package config

import (
	"encoding/hex"
	"reflect"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Digest is the command cache key of a configuration
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// ParseDigest decodes the hex form of a digest
func ParseDigest(s string) (Digest, bool) {
	var d Digest
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != len(d) {
		return d, false
	}
	copy(d[:], b)
	return d, true
}

// commandDomainKey separates command cache digests from any other use of
// the same bytes: the ASCII domain name zero padded to 32 bytes
var commandDomainKey = [32]byte{
	's', 'b', '.', 'c', 'o', 'm', 'm', 'a', 'n', 'd', '.', 'c', 'a', 'c', 'h', 'e',
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("config: CBOR encoder initialization failed: " + err.Error())
	}
}

// Digest hashes the cache relevant fields of c. String lists are compared
// as sets, so their order and duplicates do not matter.
func (c *Config) Digest() (Digest, error) {
	var d Digest
	b, err := encMode.Marshal(c.cacheFields())
	if err != nil {
		return d, err
	}
	h, err := blake3.NewKeyed(commandDomainKey[:])
	if err != nil {
		return d, err
	}
	h.Write(b)
	copy(d[:], h.Sum(nil))
	return d, nil
}

// cacheFields maps the yaml name of every cache relevant field to its
// normalized value
func (c *Config) cacheFields() map[string]any {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	ret := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("cache") == "-" || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" {
			name = f.Name
		}
		fv := v.Field(i).Interface()
		switch x := fv.(type) {
		case []string:
			fv = normalize(x)
		case map[string]string:
			if len(x) == 0 {
				fv = nil
			}
		}
		ret[name] = fv
	}
	// the identity defaults to the program name
	ret["name"] = c.AppName()
	return ret
}

func normalize(s []string) []string {
	ret := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, e := range s {
		if !seen[e] {
			seen[e] = true
			ret = append(ret, e)
		}
	}
	sort.Strings(ret)
	return ret
}
