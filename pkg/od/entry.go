package od

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// An Entry is one index-level node of an [ObjectDictionary]: the object
// found at a single 16-bit index. CiA 301's four object codes map to two
// shapes:
//   - VAR / DOMAIN -> backed by a single [Variable]
//   - ARRAY / RECORD -> backed by a [VariableList] of sub entries
//
// Sub entries of an ARRAY/RECORD are themselves always VAR-shaped, which
// keeps subindex lookup uniform regardless of the parent's object code.
type Entry struct {
	logger *slog.Logger
	// The OD index e.g. x1006
	Index uint16
	// The OD name inside of EDS
	Name string
	// The OD object type, as cited above.
	ObjectType uint8
	// Either a [Variable] or a [VariableList] object
	object            any
	extension         *extension
	subEntriesNameMap map[string]uint8
}

// NewEntry builds an [Entry] wrapping object (a *Variable for VAR/DOMAIN, a
// *VariableList for ARRAY/RECORD) under the given index/name/object-code.
func NewEntry(logger *slog.Logger, index uint16, name string, object any, objectType uint8) *Entry {
	return &Entry{
		logger:            logger.With("index", fmt.Sprintf("x%x", index), "name", name),
		Index:             index,
		Name:              name,
		object:            object,
		ObjectType:        objectType,
		subEntriesNameMap: map[string]uint8{},
	}
}

// SubIndex resolves subIndex (a string sub-name, int, or uint8) to the
// [Variable] living at that slot. A VAR/DOMAIN entry only accepts 0 or "".
func (entry *Entry) SubIndex(subIndex any) (v *Variable, e error) {
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	switch object := entry.object.(type) {
	case *Variable:
		switch subIndex {
		case 0, uint8(0), "":
			return object, nil
		}
		return nil, ErrSubNotExist
	case *VariableList:
		resolved, ok, err := entry.resolveSubIndex(subIndex)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSubNotExist
		}
		return object.GetSubObject(resolved)
	default:
		return nil, ErrDevIncompat
	}
}

// resolveSubIndex converts the polymorphic subIndex argument to a concrete
// uint8 against this entry's name map. ok is false only for an unknown
// sub-name; an out-of-range or wrong-typed argument is reported as err.
func (entry *Entry) resolveSubIndex(subIndex any) (resolved uint8, ok bool, err error) {
	switch sub := subIndex.(type) {
	case string:
		resolved, ok = entry.subEntriesNameMap[sub]
		return resolved, ok, nil
	case int:
		if sub < 0 || sub >= 256 {
			return 0, false, ErrDevIncompat
		}
		return uint8(sub), true, nil
	case uint8:
		return sub, true, nil
	default:
		return 0, false, ErrDevIncompat
	}
}

// Add a member to Entry, this is only possible for Record/Array objects
func (entry *Entry) addSectionMember(section *ini.Section, name string, nodeId uint8, subIndex uint8) error {
	record, ok := entry.object.(*VariableList)
	if !ok {
		return fmt.Errorf("cannot add member to type : %T", record)
	}
	variable, err := NewVariableFromSection(section, name, nodeId, entry.Index, subIndex)
	if err != nil {
		return err
	}
	switch entry.ObjectType {
	case ObjectTypeARRAY:
		record.Variables[subIndex] = variable
		entry.subEntriesNameMap[name] = subIndex
	case ObjectTypeRECORD:
		record.Variables = append(record.Variables, variable)
		entry.subEntriesNameMap[name] = subIndex
	default:
		return fmt.Errorf("add member not supported for ObjectType : %v", entry.ObjectType)
	}
	return nil
}

// Add an extension to an OD entry
// This allows an OD entry to perform custom behaviour on read or on write.
// Some extensions are already defined in this package for defined CiA entries
// e.g. objects x1005, x1006, etc.
// Implementation of the default StreamReader & StreamWriter for a regular OD entry
// can be found here [ReadEntryDefault] & [WriteEntryDefault].
func (entry *Entry) AddExtension(object any, read StreamReader, write StreamWriter) {
	entry.logger.Debug("added extension",
		"read", getFunctionName(read),
		"write", getFunctionName(write),
	)
	extension := &extension{object: object, read: read, write: write}
	entry.extension = extension
}

// SubCount returns the number of sub entries inside entry.
// If entry is of VAR type it will return 1
func (entry *Entry) SubCount() int {

	switch object := entry.object.(type) {
	case *Variable:
		return 1
	case *VariableList:
		return len(object.Variables)
	default:
		// This is not normal
		entry.logger.Error("invalid entry", "type", fmt.Sprintf("%T", entry))
		return 1
	}
}

func (entry *Entry) Extension() *extension {
	return entry.extension
}

func (entry *Entry) FlagPDOByte(subIndex byte) *uint8 {
	return &entry.extension.flagsPDO[subIndex>>3]
}

// Uint8 reads data inside of OD as if it were and UNSIGNED8.
// It returns an error if length is incorrect or read failed.
func (entry *Entry) Uint8(subIndex uint8) (uint8, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint8()
}

// Uint16 reads data inside of OD as if it were and UNSIGNED16.
// It returns an error if length is incorrect or read failed.
func (entry *Entry) Uint16(subIndex uint8) (uint16, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint16()
}

// Uint32 reads data inside of OD as if it were and UNSIGNED32.
// It returns an error if length is incorrect or read failed.
func (entry *Entry) Uint32(subIndex uint8) (uint32, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint32()
}

// Uint64 reads data inside of OD as if it were and UNSIGNED64.
// It returns an error if length is incorrect or read failed.
func (entry *Entry) Uint64(subIndex uint8) (uint64, error) {
	sub, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return sub.Uint64()
}

// PutUint8 writes an UNSIGNED8 to the entry's sole/addressed sub.
// origin bypasses any registered extension when true.
func (entry *Entry) PutUint8(subIndex uint8, value uint8, origin bool) error {
	return entry.WriteExactly(subIndex, []byte{value}, origin)
}

// PutUint16 writes an UNSIGNED16, little-endian, to OD entry.
func (entry *Entry) PutUint16(subIndex uint8, data uint16, origin bool) error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, data)
	return entry.WriteExactly(subIndex, b, origin)
}

// PutUint32 writes an UNSIGNED32, little-endian, to OD entry.
func (entry *Entry) PutUint32(subIndex uint8, data uint32, origin bool) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, data)
	return entry.WriteExactly(subIndex, b, origin)
}

// PutUint64 writes an UNSIGNED64, little-endian, to OD entry.
func (entry *Entry) PutUint64(subIndex uint8, data uint64, origin bool) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, data)
	return entry.WriteExactly(subIndex, b, origin)
}

// Read exactly len(b) bytes from OD at (index,subIndex)
// origin parameter controls extension usage if any
func (entry *Entry) ReadExactly(subIndex uint8, b []byte, origin bool) error {
	streamer, err := NewStreamer(entry, subIndex, origin)
	if err != nil {
		return err
	}
	if int(streamer.DataLength) != len(b) {
		return ErrTypeMismatch
	}
	_, err = streamer.Read(b)
	return err
}

// Write exactly len(b) bytes to OD at (index,subIndex)
// origin parameter controls extension usage if exists
func (entry *Entry) WriteExactly(subIndex uint8, b []byte, origin bool) error {
	streamer, err := NewStreamer(entry, subIndex, origin)
	if err != nil {
		return err
	}
	if int(streamer.DataLength) != len(b) {
		return ErrTypeMismatch
	}
	_, err = streamer.Write(b)
	return err

}

// Returns last part of function name
func getFunctionName(i interface{}) string {
	fullName := runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
	fullNameSplitted := strings.Split(fullName, ".")
	return fullNameSplitted[len(fullNameSplitted)-1]
}
