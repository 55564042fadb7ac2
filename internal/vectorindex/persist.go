package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/giai-dev/giai/internal/quantize"
)

// FormatVersion is the current persisted graph format version.
// Readers must refuse files carrying any other version.
const FormatVersion uint32 = 1

var magic = [4]byte{'H', 'N', 'S', 'W'}

// Save writes the graph to w in the versioned binary layout:
// magic, version, header fields, per-node records, entry point.
// Everything is little-endian.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := writeU32(bw, FormatVersion); err != nil {
		return err
	}

	keys := make([]uint64, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	maxLevel := 0
	for _, k := range keys {
		if lvl := g.nodes[k].level; lvl > maxLevel {
			maxLevel = lvl
		}
	}

	header := []uint32{
		uint32(g.cfg.M), uint32(g.cfg.EfConstruction), uint32(g.cfg.EfSearch),
		uint32(g.cfg.QBits), uint32(g.cfg.Dim), uint32(g.cfg.MaxElements),
		uint32(len(keys)), uint32(maxLevel),
	}
	for _, h := range header {
		if err := writeU32(bw, h); err != nil {
			return err
		}
	}

	keyToIndex := make(map[uint64]uint32, len(keys))
	for i, k := range keys {
		keyToIndex[k] = uint32(i)
	}

	for _, k := range keys {
		n := g.nodes[k]
		if err := writeLenPrefixedString(bw, n.id); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(n.level)); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(n.vec.Dim)); err != nil {
			return err
		}
		if err := writeU32(bw, math.Float32bits(n.vec.Scale)); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(len(n.vec.Q))); err != nil {
			return err
		}
		if err := writeInt8Slice(bw, n.vec.Q); err != nil {
			return err
		}

		for layer := 0; layer <= n.level; layer++ {
			// Dangling references to lazily deleted nodes are dropped
			// here rather than persisted.
			var live []uint32
			if layer < len(n.neighbors) {
				for _, nb := range n.neighbors[layer] {
					if idx, ok := keyToIndex[nb]; ok {
						live = append(live, idx)
					}
				}
			}
			if err := writeU32(bw, uint32(len(live))); err != nil {
				return err
			}
			for _, idx := range live {
				if err := writeU32(bw, idx); err != nil {
					return err
				}
			}
		}
	}

	entryIdx := uint32(0)
	if idx, ok := keyToIndex[g.entryPoint]; ok {
		entryIdx = idx
	}
	if err := writeU32(bw, entryIdx); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(g.entryLevel)); err != nil {
		return err
	}

	return bw.Flush()
}

// SaveFile saves the graph atomically: write to a temp file, then
// rename over path.
func (g *Graph) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := g.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a graph previously written by Save, rejecting any
// version other than FormatVersion.
func Load(r io.Reader) (*Graph, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("vectorindex: not an HNSW file (bad magic %q)", gotMagic)
	}

	version, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("vectorindex: unsupported format version %d (want %d)", version, FormatVersion)
	}

	header := make([]uint32, 8)
	for i := range header {
		if header[i], err = readU32(br); err != nil {
			return nil, err
		}
	}
	m, efC, efS, qBits, dim, maxElements, nodeCount, _ := header[0], header[1], header[2], header[3], header[4], header[5], header[6], header[7]

	g := NewGraph(Config{
		M: int(m), EfConstruction: int(efC), EfSearch: int(efS),
		QBits: int(qBits), Dim: int(dim), MaxElements: int(maxElements),
	})

	type rawNode struct {
		id           string
		level        int
		scale        float32
		qbytes       []int8
		layerIndices [][]uint32
	}
	raws := make([]rawNode, nodeCount)

	for i := uint32(0); i < nodeCount; i++ {
		id, err := readLenPrefixedString(br)
		if err != nil {
			return nil, err
		}
		level, err := readU32(br)
		if err != nil {
			return nil, err
		}
		nodeDim, err := readU32(br)
		if err != nil {
			return nil, err
		}
		scaleBits, err := readU32(br)
		if err != nil {
			return nil, err
		}
		qlen, err := readU32(br)
		if err != nil {
			return nil, err
		}
		qbytes, err := readInt8Slice(br, qlen)
		if err != nil {
			return nil, err
		}

		layers := make([][]uint32, level+1)
		for layer := uint32(0); layer <= level; layer++ {
			count, err := readU32(br)
			if err != nil {
				return nil, err
			}
			idxs := make([]uint32, count)
			for j := range idxs {
				if idxs[j], err = readU32(br); err != nil {
					return nil, err
				}
			}
			layers[layer] = idxs
		}

		raws[i] = rawNode{
			id:           id,
			level:        int(level),
			scale:        math.Float32frombits(scaleBits),
			qbytes:       qbytes,
			layerIndices: layers,
		}
		_ = nodeDim
	}

	entryIdx, err := readU32(br)
	if err != nil {
		return nil, err
	}
	entryLevel, err := readU32(br)
	if err != nil {
		return nil, err
	}

	keys := make([]uint64, nodeCount)
	for i, rn := range raws {
		key := uint64(i)
		keys[i] = key
		g.nodes[key] = &node{
			id:        rn.id,
			level:     rn.level,
			vec:       quantize.Quantized{Dim: int(dim), Bits: int(qBits), Scale: rn.scale, Q: rn.qbytes},
			neighbors: make([][]uint64, rn.level+1),
		}
		g.idToKey[rn.id] = key
	}
	for i, rn := range raws {
		n := g.nodes[uint64(i)]
		for layer, idxs := range rn.layerIndices {
			neighbors := make([]uint64, 0, len(idxs))
			for _, idx := range idxs {
				if int(idx) < len(keys) {
					neighbors = append(neighbors, keys[idx])
				}
			}
			n.neighbors[layer] = neighbors
		}
	}

	if nodeCount > 0 {
		g.hasEntry = true
		if int(entryIdx) < len(keys) {
			g.entryPoint = keys[entryIdx]
		}
		g.entryLevel = int(entryLevel)
	}
	g.nextKey = uint64(nodeCount)

	return g, nil
}

// LoadFile opens path and loads a graph from it.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeLenPrefixedString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLenPrefixedString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeInt8Slice(w io.Writer, vals []int8) error {
	buf := make([]byte, len(vals))
	for i, v := range vals {
		buf[i] = byte(v)
	}
	_, err := w.Write(buf)
	return err
}

func readInt8Slice(r io.Reader, n uint32) ([]int8, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]int8, n)
	for i, b := range buf {
		out[i] = int8(b)
	}
	return out, nil
}
