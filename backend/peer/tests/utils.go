package tests

import (
	"Syncrate/backend/crdt"
	"Syncrate/backend/types"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// BuildInserts returns the operations a fresh replica with the given id
// produces when typing content left to right.
func BuildInserts(origin, content string) []types.CRDTOperation {
	doc := crdt.NewDocument(origin, zerolog.Nop())
	ops := make([]types.CRDTOperation, 0, len(content))
	for _, r := range content {
		op, err := doc.Insert(doc.Length(), r)
		if err != nil {
			panic(err)
		}
		ops = append(ops, op)
	}
	return ops
}

// Reorder returns a seeded shuffle of the operations with dup extra
// duplicated entries, the way an at-least-once transport may deliver them.
func Reorder(ops []types.CRDTOperation, dup int, seed uint64) []types.CRDTOperation {
	rng := rand.New(rand.NewSource(seed))

	out := append([]types.CRDTOperation{}, ops...)
	for i := 0; i < dup && len(out) > 0; i++ {
		out = append(out, out[rng.Intn(len(out))])
	}
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
