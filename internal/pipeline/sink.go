package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/model"
)

// Sink receives finished records. The publishing transport lives outside
// this module; a sink is as far as records travel here.
type Sink interface {
	Write(archivePath, lmpName string, record *model.Record) error
}

// Review buckets, most urgent first. A record lands in the first bucket
// whose condition it meets.
const (
	bucketMaybeCheated = "maybe_cheated"
	bucketIssue        = "issue"
	bucketTags         = "tags"
	bucketClean        = "no_issue"
)

// DirSink writes one JSON file per record, sorted into per-bucket
// directories so reviewers can work the urgent pile first.
type DirSink struct {
	dir string
	log *zap.Logger
}

// NewDirSink creates a sink rooted at dir.
func NewDirSink(dir string, log *zap.Logger) *DirSink {
	return &DirSink{dir: dir, log: log}
}

// sinkPayload is the on-disk record shape, nested the way the publishing
// side expects its upload payloads.
type sinkPayload struct {
	Demo struct {
		File   map[string]string `json:"file"`
		Fields map[string]any    `json:"fields"`
		Tags   []model.Tag       `json:"tags,omitempty"`
	} `json:"demo"`
}

// Write stores the record under its review bucket.
func (s *DirSink) Write(archivePath, lmpName string, record *model.Record) error {
	bucket := bucketClean
	switch {
	case record.MaybeCheated:
		bucket = bucketMaybeCheated
	case record.HasIssue:
		bucket = bucketIssue
	case len(record.Tags) > 0:
		bucket = bucketTags
	}

	dir := filepath.Join(s.dir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	var payload sinkPayload
	payload.Demo.File = map[string]string{"name": filepath.ToSlash(archivePath)}
	payload.Demo.Fields = record.Fields
	payload.Demo.Tags = record.Tags

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	path := filepath.Join(dir, recordFilename(archivePath, lmpName, record))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	s.log.Info("record written",
		zap.String("path", path), zap.String("bucket", bucket))
	return nil
}

// ReadRecords loads the records a DirSink wrote under dir, restoring the
// review flags from the buckets they were filed into. Missing buckets are
// fine; an empty run has none.
func ReadRecords(dir string) ([]*model.Record, error) {
	var records []*model.Record
	for _, bucket := range []string{bucketMaybeCheated, bucketIssue, bucketTags, bucketClean} {
		entries, err := os.ReadDir(filepath.Join(dir, bucket))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read bucket %s: %w", bucket, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, bucket, e.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read record %s: %w", path, err)
			}
			var payload sinkPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("decode record %s: %w", path, err)
			}
			record := &model.Record{
				Fields:       payload.Demo.Fields,
				Tags:         payload.Demo.Tags,
				HasIssue:     bucket == bucketIssue,
				MaybeCheated: bucket == bucketMaybeCheated,
			}
			// JSON decoding turns the player list into []any
			if raw, ok := record.Fields["players"].([]any); ok {
				players := make([]string, 0, len(raw))
				for _, p := range raw {
					if s, ok := p.(string); ok {
						players = append(players, s)
					}
				}
				record.Fields["players"] = players
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// recordFilename builds a stable, readable name from the archive, the
// demo's player and the member name.
func recordFilename(archivePath, lmpName string, record *model.Record) string {
	archiveStem := stem(archivePath)
	player := strings.Join(record.Players(), "_")
	if player == "" {
		player = model.NeedsAttention
	}
	name := archiveStem + "_" + player
	if lmpStem := stem(lmpName); lmpStem != archiveStem {
		name += "_" + lmpStem
	}
	return sanitize(name) + ".json"
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
