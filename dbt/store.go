// Package dbt implements the dBase III memo file: a block addressed,
// append-only store for text values that do not fit into a table row.
//
// The first block holds the header. Every value starts on a block boundary
// and is terminated by a single 0x1A byte; the rest of its last block is
// zero padding.
package dbt

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Ulysses-Xu/godbf/internal/charset"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	// DefaultBlockSize is the allocation unit used by dBase III memo files.
	DefaultBlockSize = 512
	// Terminator ends a memo value inside its blocks.
	Terminator byte = 0x1A
	// Version is written into the header of newly created memo files.
	Version byte = 0x03

	headerSize = 512
)

var softReturn = []byte{0x8D, 0x0A}

var (
	// ErrMissingTerminator is returned when a value runs into the end of
	// the file before its terminator byte.
	ErrMissingTerminator = errors.New("dbt: missing memo terminator")
	// ErrReadOnly is returned by Append on a store opened for reading.
	ErrReadOnly = errors.New("dbt: store is read-only")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("dbt: store is closed")
)

// header is the on-disk layout of the first block.
type header struct {
	NextBlock uint32
	Reserved1 [12]byte
	Version   byte
	Reserved2 [495]byte
}

// Options configure a Store.
type Options struct {
	// BlockSize is the allocation unit in bytes.
	// Default: 512.
	BlockSize int

	// Encoding names the charset of stored text.
	// Default: "utf-8".
	Encoding string

	// CacheSize is the number of decoded values kept in memory.
	// Default: 128.
	CacheSize int

	// Logger receives debug events.
	// Default: slog.Default().
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = DefaultBlockSize
	}
	if oo.Encoding == "" {
		oo.Encoding = "utf-8"
	}
	if oo.CacheSize < 1 {
		oo.CacheSize = 128
	}
	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}
	return &oo
}

// File is a memo file opened for reading and appending.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
}

// Store reads and appends memo values. Read is safe for concurrent use;
// Append calls are serialised.
type Store struct {
	o     *Options
	cs    *charset.Codec
	cache *lru.ARCCache

	mu      sync.Mutex
	open    func() (io.ReaderAt, error)
	opened  bool
	openErr error
	r       io.ReaderAt
	w       io.WriterAt
	size    int64
	closer  io.Closer
	closed  bool
}

func newStore(o *Options) (*Store, error) {
	o = o.norm()
	cs, err := charset.Lookup(o.Encoding)
	if err != nil {
		return nil, err
	}
	cache, err := lru.NewARC(o.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{o: o, cs: cs, cache: cache}, nil
}

// New binds a store to f for reading and appending. The header is written
// when f is empty. The caller keeps ownership of f.
func New(f File, o *Options) (*Store, error) {
	s, err := newStore(o)
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "dbt: seek end")
	}
	s.r, s.w, s.opened, s.size = f, f, true, size
	if size == 0 {
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Open binds a read-only store to r. The caller keeps ownership of r.
func Open(r io.ReaderAt, o *Options) (*Store, error) {
	s, err := newStore(o)
	if err != nil {
		return nil, err
	}
	s.r, s.opened = r, true
	return s, nil
}

// Lazy returns a read-only store whose backing stream is obtained from open
// on first read. open is called at most once; a stream implementing
// io.Closer is owned by the store and released by Close.
func Lazy(open func() (io.ReaderAt, error), o *Options) (*Store, error) {
	s, err := newStore(o)
	if err != nil {
		return nil, err
	}
	s.open = open
	return s, nil
}

// OpenFile opens or creates the memo file at path for reading and
// appending. The file is owned by the store.
func OpenFile(path string, o *Options) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "dbt: open")
	}
	s, err := New(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// BlockSize returns the allocation unit of the store.
func (s *Store) BlockSize() int { return s.o.BlockSize }

func (s *Store) reader() (io.ReaderAt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if !s.opened {
		s.opened = true
		r, err := s.open()
		if err != nil {
			s.openErr = errors.Wrap(err, "dbt: open")
		} else {
			s.r = r
			if c, ok := r.(io.Closer); ok {
				s.closer = c
			}
			s.o.Logger.Debug("dbt: opened memo stream")
		}
	}
	return s.r, s.openErr
}

// Read returns the text stored at block.
func (s *Store) Read(block int64) (string, error) {
	if block < 0 {
		return "", errors.Errorf("dbt: invalid block %d", block)
	}
	if v, ok := s.cache.Get(block); ok {
		return v.(string), nil
	}

	r, err := s.reader()
	if err != nil {
		return "", err
	}

	bs := int64(s.o.BlockSize)
	buf := make([]byte, bs)
	var raw []byte
	for off := block * bs; ; off += bs {
		n, err := r.ReadAt(buf, off)
		if i := bytes.IndexByte(buf[:n], Terminator); i >= 0 {
			raw = append(raw, buf[:i]...)
			break
		}
		raw = append(raw, buf[:n]...)
		if err == io.EOF {
			return "", errors.Wrapf(ErrMissingTerminator, "dbt: block %d", block)
		} else if err != nil {
			return "", errors.Wrapf(err, "dbt: read block %d", block)
		}
	}

	text := s.cs.Decode(bytes.ReplaceAll(raw, softReturn, nil))
	s.cache.Add(block, text)
	return text, nil
}

// Append stores text at the next free block and returns its index.
func (s *Store) Append(text string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.w == nil {
		return 0, ErrReadOnly
	}

	bs := int64(s.o.BlockSize)
	pos := s.size
	if rem := pos % bs; rem != 0 {
		pos += bs - rem
	}
	block := pos / bs

	data := append(s.cs.Encode(text), Terminator)
	if rem := int64(len(data)) % bs; rem != 0 {
		data = append(data, make([]byte, bs-rem)...)
	}
	if _, err := s.w.WriteAt(data, pos); err != nil {
		return 0, errors.Wrapf(err, "dbt: write block %d", block)
	}
	s.size = pos + int64(len(data))

	if err := s.writeNextBlock(); err != nil {
		return 0, err
	}
	s.o.Logger.Debug("dbt: appended memo", "block", block, "size", len(data))
	return block, nil
}

func (s *Store) writeHeader() error {
	h := header{Version: Version}
	buf := bytes.NewBuffer(make([]byte, 0, headerSize))
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "dbt: encode header")
	}
	if pad := s.o.BlockSize - buf.Len(); pad > 0 {
		buf.Write(make([]byte, pad))
	}
	if _, err := s.w.WriteAt(buf.Bytes(), 0); err != nil {
		return errors.Wrap(err, "dbt: write header")
	}
	s.size = int64(buf.Len())
	return s.writeNextBlock()
}

func (s *Store) writeNextBlock() error {
	bs := int64(s.o.BlockSize)
	next := (s.size + bs - 1) / bs

	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(next))
	if _, err := s.w.WriteAt(tmp[:], 0); err != nil {
		return errors.Wrap(err, "dbt: write next block")
	}
	return nil
}

// Close releases the backing stream if the store owns it. Repeated calls
// are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
