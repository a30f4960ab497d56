// Package meta holds the free-form labels a user may attach to a transaction
// (receipt number, merchant, trip name).
package meta

import (
    "bytes"
    "database/sql/driver"
    "encoding/json"
    "fmt"
    "sort"
    "strings"

    "github.com/tinoosan/fintrack/internal/errs"
)

// Metadata is a small string map with validation and stable JSON encoding.
type Metadata map[string]string

const (
    MaxPairs     = 16
    MaxKeyLen    = 40
    MaxValLen    = 200
    MaxTotalJSON = 2048
)

func New(m map[string]string) Metadata {
    out := make(Metadata, len(m))
    for k, v := range m { out[strings.TrimSpace(k)] = v }
    return out
}

func (m Metadata) Clone() Metadata { return New(m) }

func (m Metadata) Get(k string) (string, bool) { v, ok := m[k]; return v, ok }

// Set stores k=v unless it would break a limit; Validate reports what Set silently drops.
func (m Metadata) Set(k, v string) {
    k = strings.TrimSpace(k)
    if _, exists := m[k]; !exists && len(m) >= MaxPairs { return }
    if len(k) == 0 || len(k) > MaxKeyLen { return }
    if len(v) > MaxValLen { return }
    m[k] = v
}

func (m Metadata) Del(k string) { delete(m, k) }

func (m Metadata) Merge(other Metadata) {
    for _, k := range other.keys() { m.Set(k, other[k]) }
}

// Validate returns an errs.ErrInvalid field error naming the first broken limit.
func (m Metadata) Validate() error {
    if len(m) > MaxPairs { return errs.Invalid("metadata", fmt.Sprintf("at most %d pairs", MaxPairs)) }
    for _, k := range m.keys() {
        if len(k) == 0 || len(k) > MaxKeyLen { return errs.Invalid("metadata", "key empty or longer than "+fmt.Sprint(MaxKeyLen)) }
        if len(m[k]) > MaxValLen { return errs.Invalid("metadata."+k, "value longer than "+fmt.Sprint(MaxValLen)) }
    }
    b, _ := m.MarshalStableJSON()
    if len(b) > MaxTotalJSON { return errs.Invalid("metadata", "encoded size exceeds limit") }
    return nil
}

func (m Metadata) keys() []string {
    keys := make([]string, 0, len(m))
    for k := range m { keys = append(keys, k) }
    sort.Strings(keys)
    return keys
}

// MarshalStableJSON returns a deterministic JSON representation with keys sorted.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
    if len(m) == 0 { return []byte("{}"), nil }
    buf := &bytes.Buffer{}
    buf.WriteByte('{')
    for i, k := range m.keys() {
        kb, _ := json.Marshal(k)
        vb, _ := json.Marshal(m[k])
        if i > 0 { buf.WriteByte(',') }
        buf.Write(kb)
        buf.WriteByte(':')
        buf.Write(vb)
    }
    buf.WriteByte('}')
    return buf.Bytes(), nil
}

func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }

func (m *Metadata) UnmarshalJSON(b []byte) error {
    if len(b) == 0 || bytes.Equal(b, []byte("null")) { *m = Metadata{}; return nil }
    var tmp map[string]string
    if err := json.Unmarshal(b, &tmp); err != nil { return err }
    *m = New(tmp)
    return nil
}

// Value stores metadata as its stable JSON text.
func (m Metadata) Value() (driver.Value, error) {
    b, err := m.MarshalStableJSON()
    if err != nil { return nil, err }
    return string(b), nil
}

// Scan reads metadata written by Value. NULL scans to an empty map.
func (m *Metadata) Scan(src any) error {
    switch v := src.(type) {
    case nil:
        *m = Metadata{}
        return nil
    case string:
        return m.UnmarshalJSON([]byte(v))
    case []byte:
        return m.UnmarshalJSON(v)
    default:
        return fmt.Errorf("meta: cannot scan %T", src)
    }
}
