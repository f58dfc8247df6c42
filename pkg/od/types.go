package od

// CANopen object dictionary object types, as used in the "ObjectType" EDS key.
const (
	ObjectTypeDOMAIN uint8 = 2
	ObjectTypeVAR    uint8 = 7
	ObjectTypeARRAY  uint8 = 8
	ObjectTypeRECORD uint8 = 9
)

// OBJ_NAME_MAP gives a human readable name for an object type, used for logging.
var OBJ_NAME_MAP = map[uint8]string{
	ObjectTypeDOMAIN: "DOMAIN  ",
	ObjectTypeVAR:    "VARIABLE",
	ObjectTypeARRAY:  "ARRAY   ",
	ObjectTypeRECORD: "RECORD  ",
}

// Subindexes of the PDO communication and mapping parameter records
// (0x1400-0x15FF / 0x1800-0x19FF and 0x1600-0x17FF / 0x1A00-0x1BFF).
const (
	SubPdoNbMappings       uint8 = 0
	SubPdoCobId            uint8 = 1
	SubPdoTransmissionType uint8 = 2
	SubPdoInhibitTime      uint8 = 3
	SubPdoReserved         uint8 = 4
	SubPdoEventTimer       uint8 = 5
	SubPdoSyncStart        uint8 = 6
)

// EntrySDOServerParameter and EntrySDOClientParameter are the standard index
// of the SDO server and client communication parameter objects.
const (
	EntrySDOServerParameter uint16 = 0x1200
	EntrySDOClientParameter uint16 = 0x1280
)

// CANopen data types, as defined by CiA 301.
const (
	BOOLEAN        uint8 = 0x01
	INTEGER8       uint8 = 0x02
	INTEGER16      uint8 = 0x03
	INTEGER32      uint8 = 0x04
	UNSIGNED8      uint8 = 0x05
	UNSIGNED16     uint8 = 0x06
	UNSIGNED32     uint8 = 0x07
	REAL32         uint8 = 0x08
	VISIBLE_STRING uint8 = 0x09
	OCTET_STRING   uint8 = 0x0A
	UNICODE_STRING uint8 = 0x0B
	DOMAIN         uint8 = 0x0F
	REAL64         uint8 = 0x11
	INTEGER64      uint8 = 0x15
	UNSIGNED64     uint8 = 0x1B
)
