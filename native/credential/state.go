package credential

import "encoding/binary"

// State describes the persistence surface the credential module requires from
// the surrounding state implementation.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	tokenPrefix      = []byte("credential/token/")
	burntPrefix      = []byte("credential/burnt/")
	holderIndexPref  = []byte("credential/holder-index/")
	nextIDKey        = []byte("credential/next-id")
	transferableKey  = []byte("credential/transferable")
	administratorKey = []byte("credential/admin")
)

func tokenIDBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func tokenIDFromBytes(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

func tokenKey(id uint64) []byte {
	idBytes := tokenIDBytes(id)
	key := make([]byte, len(tokenPrefix)+len(idBytes))
	copy(key, tokenPrefix)
	copy(key[len(tokenPrefix):], idBytes)
	return key
}

func burntKey(id uint64) []byte {
	idBytes := tokenIDBytes(id)
	key := make([]byte, len(burntPrefix)+len(idBytes))
	copy(key, burntPrefix)
	copy(key[len(burntPrefix):], idBytes)
	return key
}

func holderIdxKey(owner [20]byte) []byte {
	key := make([]byte, len(holderIndexPref)+len(owner))
	copy(key, holderIndexPref)
	copy(key[len(holderIndexPref):], owner[:])
	return key
}
