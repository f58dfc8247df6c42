package od

// VariableList backs an ARRAY or RECORD [Entry]: an ordered set of
// sub-objects, each a plain VAR [Variable]. ARRAY sub-objects sit at the
// slice position matching their subindex; RECORD sub-objects are appended
// in declaration order and located by a linear scan of SubIndex.
type VariableList struct {
	Variables         []*Variable
	objectType        uint8 // ObjectTypeARRAY or ObjectTypeRECORD
	subEntriesNameMap map[string]uint8
}

// GetSubObject looks up the [Variable] at subindex.
func (list *VariableList) GetSubObject(subindex uint8) (*Variable, error) {
	if list.objectType == ObjectTypeARRAY {
		if int(subindex) >= len(list.Variables) {
			return nil, ErrSubNotExist
		}
		return list.Variables[subindex], nil
	}
	for _, variable := range list.Variables {
		if variable.SubIndex == subindex {
			return variable, nil
		}
	}
	return nil, ErrSubNotExist
}

// GetSubObjectByName resolves a sub-object by its EDS section name.
func (list *VariableList) GetSubObjectByName(name string) (*Variable, error) {
	sub, ok := list.subEntriesNameMap[name]
	if !ok {
		return nil, ErrSubNotExist
	}
	return list.GetSubObject(sub)
}

// AddSubObject inserts a new sub-object. For an ARRAY, subindex must be an
// already-reserved slot (0..len(Variables)-1); for a RECORD any subindex is
// accepted and the list grows by one.
func (list *VariableList) AddSubObject(
	subindex uint8,
	name string,
	datatype uint8,
	attribute uint8,
	value string,
) (*Variable, error) {
	variable, err := NewVariable(subindex, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}
	list.subEntriesNameMap[name] = subindex

	if list.objectType == ObjectTypeARRAY {
		if int(subindex) >= len(list.Variables) {
			_logger.Error("trying to add a sub-object to array but ouf of bounds",
				"subindex", subindex,
				"length", len(list.Variables),
			)
			return nil, ErrSubNotExist
		}
		list.Variables[subindex] = variable
		return variable, nil
	}
	list.Variables = append(list.Variables, variable)
	return variable, nil
}

func newVariableList(length int, objectType uint8) *VariableList {
	return &VariableList{objectType: objectType, Variables: make([]*Variable, length), subEntriesNameMap: make(map[string]uint8)}
}

func NewRecord() *VariableList {
	return newVariableList(0, ObjectTypeRECORD)
}

func NewArray(length uint8) *VariableList {
	return newVariableList(int(length), ObjectTypeARRAY)
}
