package main

import (
	"fmt"
	"os"
	"time"

	"Syncrate/backend/peer"
	"Syncrate/backend/peer/impl"
	"Syncrate/backend/types"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/rand"
	"golang.org/x/xerrors"
)

var editorFactory peer.Factory = impl.NewEditor

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	app := &cli.App{
		Name:  "syncrate",
		Usage: "replicated text sequence playground",
		Commands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "drive random concurrent edits across in-memory replicas and check convergence",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "replicas", Value: 3, Usage: "number of replicas"},
					&cli.IntFlag{Name: "ops", Value: 200, Usage: "local operations per replica"},
					&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				},
				Action: func(c *cli.Context) error {
					return simulate(log, c.Int("replicas"), c.Int("ops"), c.Uint64("seed"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("exited with error")
	}
}

// simulate runs replicaN editors concurrently editing one document, then
// delivers every produced operation to every other replica in a shuffled
// order with some duplicates, the way an at-least-once transport would. All
// replicas must render the same text afterwards.
func simulate(log zerolog.Logger, replicaN, opN int, seed uint64) error {
	if replicaN < 2 {
		return xerrors.Errorf("need at least 2 replicas, got %d", replicaN)
	}
	rng := rand.New(rand.NewSource(seed))

	const docID = "doc"

	logs := make([][]types.CRDTOperation, replicaN)
	editors := make([]peer.Editor, replicaN)
	for i := range editors {
		i := i
		editors[i] = editorFactory(peer.Configuration{
			ReplicaID: fmt.Sprintf("replica-%03d", i),
			LogLevel:  zerolog.ErrorLevel,
			Broadcast: func(_ string, msg types.CRDTOperationsMessage) {
				logs[i] = append(logs[i], msg.Operations...)
			},
		})
	}

	// Phase 1: independent local editing.
	for i, ed := range editors {
		for k := 0; k < opN; k++ {
			length := len([]rune(ed.Text(docID)))
			if length > 0 && rng.Intn(4) == 0 {
				if _, err := ed.Delete(docID, rng.Intn(length)); err != nil {
					return xerrors.Errorf("replica %d delete: %v", i, err)
				}
				continue
			}
			char := rune('a' + rng.Intn(26))
			if _, err := ed.Insert(docID, rng.Intn(length+1), char); err != nil {
				return xerrors.Errorf("replica %d insert: %v", i, err)
			}
		}
	}

	// Phase 2: at-least-once delivery, shuffled, with duplicates.
	for i, ed := range editors {
		var incoming []types.CRDTOperation
		for j, opLog := range logs {
			if j == i {
				continue
			}
			incoming = append(incoming, opLog...)
		}
		// duplicate a tenth of the operations
		for k := 0; k < len(incoming)/10; k++ {
			incoming = append(incoming, incoming[rng.Intn(len(incoming))])
		}
		rng.Shuffle(len(incoming), func(a, b int) {
			incoming[a], incoming[b] = incoming[b], incoming[a]
		})

		for _, op := range incoming {
			if err := ed.ApplyRemote(docID, op); err != nil {
				return xerrors.Errorf("replica %d apply %s: %v", i, op, err)
			}
		}
	}

	// Phase 3: acknowledge clocks and collect tombstones.
	for _, ed := range editors {
		for _, other := range editors {
			if other.ReplicaID() == ed.ReplicaID() {
				continue
			}
			ed.AckPeerClock(other.ReplicaID(), other.Clock(docID))
		}
		ed.CollectTombstones(docID)
	}

	want := editors[0].Text(docID)
	for i, ed := range editors {
		if got := ed.Text(docID); got != want {
			return xerrors.Errorf("replica %d diverged: %q != %q", i, got, want)
		}
	}

	log.Info().
		Int("replicas", replicaN).
		Int("ops", replicaN*opN).
		Int("length", len([]rune(want))).
		Msg("all replicas converged")
	return nil
}
