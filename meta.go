package godbf

// rawHeader is the on-disk layout of the 32 byte table preamble.
type rawHeader struct {
	Signature        byte
	LastUpdateYear   byte
	LastUpdateMonth  byte
	LastUpdateDay    byte
	NumRecords       uint32
	HeaderLength     uint16
	RecordLength     uint16
	Reserved1        [2]byte
	IncompleteTx     byte
	EncryptFlag      byte
	FreeRecordThread [4]byte
	Reserved2        [4]byte
	Reserved3        [4]byte
	MDXFlag          byte
	LanguageDriverID byte
	Reserved4        [2]byte
}

// fieldDescriptor is the on-disk layout of one 32 byte column definition.
type fieldDescriptor struct {
	Name         [11]byte
	Type         byte
	Reserved1    [4]byte
	Length       byte
	Decimal      byte
	Reserved2    [2]byte
	WorkAreaID   byte
	Reserved3    [2]byte
	SetFieldFlag byte
	Reserved4    [7]byte
	IndexFlag    byte
}

const (
	headerSize     = 32
	descriptorSize = 32
)
