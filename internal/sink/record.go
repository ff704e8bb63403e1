package sink

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/phantomos/phantom/internal/fault"
)

// genesisHash anchors the chain: the first record's PrevHash.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// DecisionRecord is the immutable description of a single judgment, filed
// under the artifact's hash. Records chain through PrevHash: each record's
// identity covers its predecessor, so altering any historical record breaks
// verification of everything after it.
type DecisionRecord struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	Timestamp    int64  `json:"timestamp"`
	Source       string `json:"source"` // "governor" | "dnauth" | "urlscan"
	ArtifactHash string `json:"artifact_hash"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Kind         string `json:"kind"` // "approve" | "decline" | "classify" | "log"
	Threat       string `json:"threat"`
	Caps         uint32 `json:"caps"`
	DecisionBy   string `json:"decision_by,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Reasoning    string `json:"reasoning,omitempty"`
	PrevHash     string `json:"prev_hash"`
}

// marshalRecord produces the canonical bytes a record is hashed and stored
// as. HTML escaping is disabled so the bytes are stable.
func marshalRecord(rec DecisionRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fault.Wrap(err, fault.KindIO, "marshal_record", "failed to marshal decision record")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Append chains and stores a decision record. The sink assigns ID, Seq and
// PrevHash; the caller fills everything else. Returns the record hash.
//
// Appends are totally ordered: the single-writer connection serializes
// concurrent callers and the chain reflects commit order.
func (s *Sink) Append(ctx context.Context, rec DecisionRecord) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to begin transaction")
	}
	defer tx.Rollback()

	var lastSeq int64
	prev := genesisHash
	err = tx.QueryRowContext(ctx, `
		SELECT seq, record_hash FROM decisions ORDER BY seq DESC LIMIT 1
	`).Scan(&lastSeq, &prev)
	if err != nil && err != sql.ErrNoRows {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to read chain head")
	}

	rec.ID = uuid.NewString()
	rec.Seq = lastSeq + 1
	rec.PrevHash = prev
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().Unix()
	}

	canonical, err := marshalRecord(rec)
	if err != nil {
		return "", err
	}
	recHash := recordHash(canonical)
	blobHash := BlobHash(canonical)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blobs (hash, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, blobHash, canonical, s.now().Unix())
	if err != nil {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to store record blob")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions (id, artifact_hash, record_hash, prev_hash, blob_hash)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.ArtifactHash, recHash, prev, blobHash)
	if err != nil {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to append decision")
	}

	// Bind decisions/<artifact>/<seq> so per-artifact history resolves
	// without scanning.
	path := fmt.Sprintf("decisions/%s/%d", rec.ArtifactHash, rec.Seq)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO refs (path, hash, bound_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, path, blobHash, s.now().Unix())
	if err != nil {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to bind decision path")
	}

	if err := tx.Commit(); err != nil {
		return "", fault.Wrap(err, fault.KindIO, "append", "failed to commit decision")
	}
	return recHash, nil
}

// Decisions returns the chained records for one artifact hash, oldest
// first. Pass "" to list the full chain.
func (s *Sink) Decisions(ctx context.Context, artifactHash string) ([]DecisionRecord, error) {
	query := `SELECT b.data FROM decisions d JOIN blobs b ON b.hash = d.blob_hash ORDER BY d.seq ASC`
	args := []any{}
	if artifactHash != "" {
		query = `SELECT b.data FROM decisions d JOIN blobs b ON b.hash = d.blob_hash
			WHERE d.artifact_hash = ? ORDER BY d.seq ASC`
		args = append(args, artifactHash)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindIO, "decisions", "failed to query decisions")
	}
	defer rows.Close()

	var recs []DecisionRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fault.Wrap(err, fault.KindIO, "decisions", "failed to scan decision")
		}
		var rec DecisionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fault.Wrap(err, fault.KindCorruptState, "decision_json", "stored decision does not parse")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// VerifyChain replays the full decision chain, recomputing every record
// hash against the stored value and checking each PrevHash link. Returns
// the number of verified records.
func (s *Sink) VerifyChain(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.record_hash, d.prev_hash, b.data
		FROM decisions d JOIN blobs b ON b.hash = d.blob_hash
		ORDER BY d.seq ASC
	`)
	if err != nil {
		return 0, fault.Wrap(err, fault.KindIO, "verify", "failed to query chain")
	}
	defer rows.Close()

	n := 0
	prev := genesisHash
	for rows.Next() {
		var stored, prevStored string
		var data []byte
		if err := rows.Scan(&stored, &prevStored, &data); err != nil {
			return n, fault.Wrap(err, fault.KindIO, "verify", "failed to scan record")
		}
		if prevStored != prev {
			return n, fault.New(fault.KindCorruptState, "chain_link",
				"record %d links to %s, expected %s", n+1, prevStored, prev)
		}
		if got := recordHash(data); got != stored {
			return n, fault.New(fault.KindCorruptState, "chain_digest",
				"record %d fails digest verification", n+1)
		}
		prev = stored
		n++
	}
	return n, rows.Err()
}
