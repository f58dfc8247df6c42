package od

import (
	"encoding/binary"
	"fmt"
)

// ReadDCF applies a concise-DCF buffer to the dictionary. The buffer is a
// u32 LE entry count followed by that many records of
// (index:u16, subindex:u8, size:u32, payload:size bytes), all little-endian.
// A record addressing an index/subindex that is not present in this
// dictionary is silently skipped. Apply is best-effort: the first record
// that exists but fails to write is reported as (index, subindex, err);
// records already committed before it are not rolled back, and ok
// reports whether every addressed record wrote successfully.
func (od *ObjectDictionary) ReadDCF(data []byte) (ok bool, failIndex uint16, failSubIndex uint8, ferr error) {
	if len(data) < 4 {
		return false, 0, 0, fmt.Errorf("concise dcf: truncated header")
	}
	nbEntries := binary.LittleEndian.Uint32(data[:4])
	offset := uint32(4)
	ok = true

	for i := uint32(0); i < nbEntries; i++ {
		if offset+7 > uint32(len(data)) {
			return false, failIndex, failSubIndex, fmt.Errorf("concise dcf: truncated record header at offset %d", offset)
		}
		index := binary.LittleEndian.Uint16(data[offset:])
		subIndex := data[offset+2]
		size := binary.LittleEndian.Uint32(data[offset+3:])
		offset += 7
		if offset+size > uint32(len(data)) {
			return false, failIndex, failSubIndex, fmt.Errorf("concise dcf: truncated payload at offset %d", offset)
		}
		payload := data[offset : offset+size]
		offset += size

		entry := od.Index(index)
		if entry == nil {
			continue
		}
		variable, err := entry.SubIndex(subIndex)
		if err != nil {
			continue
		}
		if err := writeDCFValue(entry, variable, subIndex, payload); err != nil {
			if ok {
				ok = false
				failIndex, failSubIndex, ferr = index, subIndex, err
			}
		}
	}
	return ok, failIndex, failSubIndex, ferr
}

// DCFRecord is one decoded concise-DCF record. ByteOffset is the offset of
// this record's index field within the original buffer, reported so a
// caller that fails applying a record can point back at the exact byte in
// the DCF that caused it.
type DCFRecord struct {
	Index      uint16
	SubIndex   uint8
	Data       []byte
	ByteOffset uint32
}

// IterateDCF decodes a concise-DCF buffer into its records, without
// requiring a local dictionary to apply them against -- this is what an
// SDO client uses to replay a concise DCF against a remote node one
// download per record.
func IterateDCF(data []byte) ([]DCFRecord, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("concise dcf: truncated header")
	}
	nbEntries := binary.LittleEndian.Uint32(data[:4])
	offset := uint32(4)
	records := make([]DCFRecord, 0, nbEntries)

	for i := uint32(0); i < nbEntries; i++ {
		recordStart := offset
		if offset+7 > uint32(len(data)) {
			return nil, fmt.Errorf("concise dcf: truncated record header at offset %d", offset)
		}
		index := binary.LittleEndian.Uint16(data[offset:])
		subIndex := data[offset+2]
		size := binary.LittleEndian.Uint32(data[offset+3:])
		offset += 7
		if offset+size > uint32(len(data)) {
			return nil, fmt.Errorf("concise dcf: truncated payload at offset %d", offset)
		}
		records = append(records, DCFRecord{
			Index:      index,
			SubIndex:   subIndex,
			Data:       data[offset : offset+size],
			ByteOffset: recordStart,
		})
		offset += size
	}
	return records, nil
}

// writeDCFValue commits payload to variable. Fixed-size types go through
// the normal streamer write pipeline (so extensions still observe the
// write); strings/domains may change size between DCF records, so their
// backing storage is replaced directly.
func writeDCFValue(entry *Entry, variable *Variable, subIndex uint8, payload []byte) error {
	switch variable.DataType {
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING, DOMAIN:
		variable.mu.Lock()
		variable.value = append([]byte(nil), payload...)
		variable.mu.Unlock()
		return nil
	default:
		return entry.WriteExactly(subIndex, payload, false)
	}
}

// WriteDCF produces a concise-DCF buffer for every sub-object of every
// entry whose index lies in [indexMin, indexMax], in index order.
func (od *ObjectDictionary) WriteDCF(indexMin uint16, indexMax uint16) ([]byte, error) {
	var records []byte
	var count uint32

	for idx := uint32(indexMin); idx <= uint32(indexMax); idx++ {
		entry := od.Index(uint16(idx))
		if entry == nil {
			continue
		}
		recs, n, err := exportEntryRecords(entry)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
		count += n
	}

	out := make([]byte, 4, 4+len(records))
	binary.LittleEndian.PutUint32(out, count)
	out = append(out, records...)
	return out, nil
}

func exportEntryRecords(entry *Entry) ([]byte, uint32, error) {
	var out []byte
	var count uint32

	for sub := 0; sub < entry.SubCount(); sub++ {
		variable, err := entry.SubIndex(uint8(sub))
		if err != nil {
			continue
		}
		data := make([]byte, variable.DataLength())
		if err := entry.ReadExactly(uint8(sub), data, false); err != nil {
			continue
		}
		rec := make([]byte, 7+len(data))
		binary.LittleEndian.PutUint16(rec[0:], entry.Index)
		rec[2] = uint8(sub)
		binary.LittleEndian.PutUint32(rec[3:], uint32(len(data)))
		copy(rec[7:], data)
		out = append(out, rec...)
		count++
	}
	return out, count, nil
}
