package node

// The Read*/Write* helpers below all go through the same two local OD
// lookups - Index then SubIndex - and differ only in which typed
// accessor on [od.Variable] they call afterwards. Index/subindex take the
// same argument shapes od.ObjectDictionary.Index and od.Entry.SubIndex
// accept (int, uint16, string name, ...).

// ReadAny returns the sub's value as its "base" Go type: uint64, int64,
// float64, string or []byte, regardless of the underlying CANopen width.
func (node *BaseNode) ReadAny(index any, subindex any) (any, error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return nil, err
	}
	return odVar.Any()
}

// ReadAnyExact is like ReadAny but preserves the exact width: uint8
// through uint64, int8 through int64, float32, float64, string or []byte.
func (node *BaseNode) ReadAnyExact(index any, subindex any) (any, error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return nil, err
	}
	return odVar.AnyExact()
}

// ReadBytes returns a copy of the sub's raw value.
func (node *BaseNode) ReadBytes(index any, subindex any) ([]byte, error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return nil, err
	}
	return odVar.Bytes(), nil
}

func (node *BaseNode) ReadBool(index any, subindex any) (bool, error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return false, err
	}
	return odVar.Bool()
}

// ReadUint returns any unsigned integer sub (uint8..uint64) widened to uint64.
func (node *BaseNode) ReadUint(index any, subindex any) (value uint64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Uint()
}

// ReadInt returns any signed integer sub (int8..int64) widened to int64.
func (node *BaseNode) ReadInt(index any, subindex any) (value int64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Int()
}

// ReadFloat returns a real32 or real64 sub widened to float64.
func (node *BaseNode) ReadFloat(index any, subindex any) (value float64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Float()
}

func (node *BaseNode) ReadString(index any, subindex any) (value string, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return "", err
	}
	return odVar.String()
}

// ReadUint8, ReadUint16, ReadUint32, ReadUint64, ReadInt8, ReadInt16,
// ReadInt32, ReadInt64, ReadFloat32 and ReadFloat64 are the fixed-width
// counterparts of ReadUint/ReadInt/ReadFloat: they fail instead of
// widening when the sub is not exactly that type.

func (node *BaseNode) ReadUint8(index any, subindex any) (value uint8, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Uint8()
}

func (node *BaseNode) ReadUint16(index any, subindex any) (value uint16, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Uint16()
}

func (node *BaseNode) ReadUint32(index any, subindex any) (value uint32, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Uint32()
}

func (node *BaseNode) ReadUint64(index any, subindex any) (value uint64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Uint64()
}

func (node *BaseNode) ReadInt8(index any, subindex any) (value int8, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Int8()
}

func (node *BaseNode) ReadInt16(index any, subindex any) (value int16, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Int16()
}

func (node *BaseNode) ReadInt32(index any, subindex any) (value int32, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Int32()
}

func (node *BaseNode) ReadInt64(index any, subindex any) (value int64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Int64()
}

func (node *BaseNode) ReadFloat32(index any, subindex any) (value float32, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Float32()
}

func (node *BaseNode) ReadFloat64(index any, subindex any) (value float64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return odVar.Float64()
}

// WriteAnyExact writes value to the addressed sub. value's Go type must
// exactly match the sub's CANopen type (see ReadAnyExact).
func (node *BaseNode) WriteAnyExact(index any, subindex any, value any) error {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return err
	}
	return odVar.PutAnyExact(value)
}

// WriteBytes writes value as-is; only its length is checked against the
// sub's expected size, no type conversion is attempted.
func (node *BaseNode) WriteBytes(index any, subindex any, value []byte) error {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return err
	}
	return odVar.PutBytes(value)
}
