package od

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/ini.v1"
)

// ExportEDS writes odict back out as an EDS file. With defaultValues set it
// just re-saves the parsed EDS verbatim; otherwise it rebuilds every section
// from the live entries, so a PDO remap or other runtime write is reflected
// in the file. The result isn't guaranteed byte-identical to a CiA-authored
// EDS, but round-trips through this package's own parser.
func ExportEDS(odict *ObjectDictionary, defaultValues bool, filename string) error {
	if defaultValues {
		return odict.iniFile.SaveTo(filename)
	}
	eds := ini.Empty()

	// indexes holds every OD index present, sorted ascending so sections
	// appear in the file in index order.
	indexes := make([]int, 0)
	for index := range odict.entriesByIndexValue {
		indexes = append(indexes, int(index))
	}
	sort.Ints(indexes)

	for _, index := range indexes {
		entry := odict.entriesByIndexValue[uint16(index)]

		if _, isVar := entry.object.(*Variable); isVar {
			// single-section object: VAR or DOMAIN
			variable, ok := entry.object.(*Variable)
			if !ok {
				return fmt.Errorf("[OD] expecting a variable type at %x", index)
			}
			section, err := eds.NewSection(strconv.FormatUint(uint64(index), 16))
			if err != nil {
				return err
			}
			err = populateSection(section, uint16(index), variable, entry.ObjectType)
			if err != nil {
				return fmt.Errorf("[OD] error populating section index at %x : %v", index, err)
			}
		} else {
			// multi-section object: RECORD or ARRAY, one header section
			// plus one "<index>sub<n>" section per member
			variables, ok := entry.object.(*VariableList)
			if !ok {
				return fmt.Errorf("[OD] expecting a variable list type at %x", index)
			}
			section, err := eds.NewSection(strconv.FormatUint(uint64(index), 16))
			if err != nil {
				return err
			}
			err = populateHeaderSection(section, entry.Name, variables.objectType, uint8(entry.SubCount()))
			if err != nil {
				return err
			}
			for i, variable := range variables.Variables {
				section, err = eds.NewSection(strconv.FormatUint(uint64(index), 16) + "sub" + strconv.FormatUint(uint64(variable.SubIndex), 16))
				if err != nil {
					return err
				}
				err = populateSection(section, uint16(index), variable, entry.ObjectType)
				if err != nil {
					return fmt.Errorf("[OD] error populating section index at %x|%x : %v", index, i, err)
				}
			}
		}
	}
	return eds.SaveTo(filename)
}

// populateSection writes the ParameterName/ObjectType/DataType/AccessType/
// DefaultValue keys describing a single VAR-shaped entry or sub-entry.
func populateSection(section *ini.Section, index uint16, variable *Variable, objectType uint8) error {
	_, err := section.NewKey("ParameterName", variable.Name)
	if err != nil {
		return err
	}
	_, err = section.NewKey("ObjectType", "0x"+strconv.FormatUint(uint64(objectType), 16))
	if err != nil {
		return err
	}
	_, err = section.NewKey("DataType", "0x"+strconv.FormatUint(uint64(variable.DataType), 16))
	if err != nil {
		return err
	}
	_, err = section.NewKey("AccessType", DecodeAttribute(variable.Attribute))
	if err != nil {
		return err
	}
	var decoded string
	hexType := variable.DataType != VISIBLE_STRING && variable.DataType != OCTET_STRING &&
		variable.DataType != REAL32 && variable.DataType != REAL64
	if index >= 0x1000 && index <= 0x1FFF && hexType {
		// Write values as hex strings, facilitates reading
		decoded, err = DecodeToString(variable.value, variable.DataType, 16)
		decoded = "0x" + decoded
	} else {
		decoded, err = DecodeToString(variable.value, variable.DataType, 10)
	}
	if err != nil {
		return err
	}
	_, err = section.NewKey("DefaultValue", decoded)
	return err
}

// populateHeaderSection writes the header section for a RECORD/ARRAY index,
// e.g.
//
//	[1A03]
//	ParameterName=TPDO mapping parameter
//	ObjectType=0x9
//	SubNumber=0x9
func populateHeaderSection(section *ini.Section, name string, objectType uint8, count uint8) error {
	_, err := section.NewKey("ParameterName", name)
	if err != nil {
		return err
	}
	_, err = section.NewKey("ObjectType", "0x"+strconv.FormatUint(uint64(objectType), 16))
	if err != nil {
		return err
	}
	_, err = section.NewKey("SubNumber", "0x"+strconv.FormatUint(uint64(count), 16))
	if err != nil {
		return err
	}
	return nil
}
