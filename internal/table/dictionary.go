package table

import (
	"encoding/json"
	"os"
)

// Dictionary is an insertion-ordered string interner: Insert assigns the
// next unused key (the string's index), Lookup resolves an existing
// string without assigning. A symbol dictionary never assigns two keys to
// the same string (spec §3 invariant) because Insert always checks the
// map first.
type Dictionary struct {
	keys    map[string]int32
	strings []string
}

func NewDictionary() *Dictionary {
	return &Dictionary{keys: make(map[string]int32)}
}

func (d *Dictionary) Lookup(s string) (int32, bool) {
	k, ok := d.keys[s]
	return k, ok
}

// Insert returns s's key, assigning a new one in insertion order if s has
// never been seen by this dictionary before.
func (d *Dictionary) Insert(s string) int32 {
	if k, ok := d.keys[s]; ok {
		return k
	}
	k := int32(len(d.strings))
	d.keys[s] = k
	d.strings = append(d.strings, s)
	return k
}

// String returns the string assigned to key, iff key is in range.
func (d *Dictionary) String(key int32) (string, bool) {
	if key < 0 || int(key) >= len(d.strings) {
		return "", false
	}
	return d.strings[key], true
}

// Strings returns every interned string in key order (index == key).
func (d *Dictionary) Strings() []string {
	return d.strings
}

func (d *Dictionary) Len() int { return len(d.strings) }

// SaveDictionary writes d in its JSON-on-disk form: a plain key-ordered
// string array, matching the teacher's preference for small
// JSON sidecars (schema/manager.go) over a bespoke binary format for
// anything that isn't on the per-record hot path.
func SaveDictionary(path string, d *Dictionary) error {
	data, err := json.Marshal(d.strings)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDictionary(), nil
		}
		return nil, err
	}
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return nil, err
	}
	d := NewDictionary()
	for _, s := range strs {
		d.Insert(s)
	}
	return d, nil
}
