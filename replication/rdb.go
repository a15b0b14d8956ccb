package replication

import "encoding/base64"

// emptyRDBBase64 is the fixed 88-byte empty RDB payload sent after
// +FULLRESYNC during PSYNC. This server never persists to disk, so every
// full resync hands the replica this same canned snapshot rather than a
// real dump of the keyspace: the keyspace itself is relayed afterward as
// ordinary propagated write commands.
const emptyRDBBase64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// EmptyRDB returns the canned empty-database snapshot bytes.
func EmptyRDB() []byte {
	b, err := base64.StdEncoding.DecodeString(emptyRDBBase64)
	if err != nil {
		panic("replication: malformed embedded RDB constant: " + err.Error())
	}
	return b
}
