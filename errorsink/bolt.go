package errorsink

import (
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// record is the durable, CBOR-encoded form of one reported error. An
// Operation is opaque beyond its Table/PartitionKey contract, so that is
// all a durable sink can persist about the op itself.
type record struct {
	Table        string `cbor:"table"`
	PartitionKey []byte `cbor:"partition_key"`
	Kind         int    `cbor:"kind"`
	Message      string `cbor:"message"`
}

// Bolt is a durable api.ErrorSink backed by a bbolt bucket, grounded on
// the state-store pattern used to persist synced-round state: one
// bucket, keys assigned from the bucket's own sequence counter, values
// CBOR-encoded.
type Bolt struct {
	db         *bolt.DB
	bucketName []byte
}

// NewBolt opens (creating if necessary) bucketName in db for use as a
// durable error sink.
func NewBolt(db *bolt.DB, bucketName []byte) (*Bolt, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Bolt{db: db, bucketName: bucketName}, nil
}

// AddError implements api.ErrorSink. An encode or write failure is
// dropped without being logged or surfaced: the batcher's contract
// treats ErrorSink as fire-and-forget.
func (s *Bolt) AddError(op api.Operation, status errs.Status) {
	partitionKey, _ := op.PartitionKey()
	rec := record{
		Table:        op.Table().Name,
		PartitionKey: partitionKey,
		Kind:         int(status.Kind),
		Message:      status.Message,
	}

	bytes, err := cbor.Marshal(&rec)
	if err != nil {
		return
	}

	_ = s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(s.bucketName)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		return bkt.Put(itob(seq), bytes)
	})
}

// Entries reads back every error currently persisted, in storage order.
func (s *Bolt) Entries() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(s.bucketName)
		return bkt.ForEach(func(k, v []byte) error {
			var rec record
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, Entry{
				Op: nil,
				Status: errs.Status{
					Kind:    errs.Kind(rec.Kind),
					Message: rec.Message,
				},
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v & 0xff)
		v >>= 8
	}
	return b
}
