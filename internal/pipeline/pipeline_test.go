package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/demoscribe/internal/model"
	"github.com/ppiankov/demoscribe/internal/post"
	"github.com/ppiankov/demoscribe/internal/replay"
	"github.com/ppiankov/demoscribe/internal/rules"
)

const pipelineTable = `
https://www.dsdarchive.com/wads/valiant:
  wad_name: valiant
  iwad: doom2
  complevel: 9
  playback_cmd_line: "-file valiant"
  wad_files:
    valiant.wad: {checksum: "aaaa"}
  map_list_info:
    map_ranges: ["1-32"]
`

// canned engine, keyed on candidate args
type cannedEngine struct {
	responses map[string]*replay.Transcripts
}

func (e *cannedEngine) Run(_ context.Context, _ string, c replay.Candidate) (*replay.Transcripts, error) {
	if t, ok := e.responses[c.Args]; ok {
		return t, nil
	}
	return nil, errors.New("no transcripts produced")
}

// vanillaDemo builds a minimal classic-format demo file.
func vanillaDemo() []byte {
	header := make([]byte, 22)
	header[0] = 109 // version
	header[1] = 3   // skill, zero-based
	header[2] = 1
	header[3] = 1
	header[9] = 1 // player 1 active
	return append(header, 0x80)
}

func writeSubmissionZip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "va01-123.zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	modified := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

	lmp, err := w.CreateHeader(&zip.FileHeader{Name: "va01-123.lmp", Modified: modified})
	if err != nil {
		t.Fatalf("Failed to add lmp: %v", err)
	}
	if _, err := lmp.Write(vanillaDemo()); err != nil {
		t.Fatalf("Failed to write lmp: %v", err)
	}

	txt, err := w.CreateHeader(&zip.FileHeader{Name: "va01-123.txt", Modified: modified})
	if err != nil {
		t.Fatalf("Failed to add txt: %v", err)
	}
	readme := "Wad: valiant\nCategory: UV Max\nSource port: DSDA-Doom 0.24.3 cl2\n"
	if _, err := txt.Write([]byte(readme)); err != nil {
		t.Fatalf("Failed to write txt: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return path
}

func testPipeline(t *testing.T, engine replay.Engine) *Pipeline {
	t.Helper()
	idx, err := rules.Parse([]byte(pipelineTable))
	if err != nil {
		t.Fatalf("Failed to parse rule table: %v", err)
	}
	cfg := model.DefaultConfig()
	cfg.Playback.TrustCategory = true
	return New(cfg, idx, nil, engine, zap.NewNop())
}

func TestProcessArchive_EndToEnd(t *testing.T) {
	engine := &cannedEngine{responses: map[string]*replay.Transcripts{
		"-file valiant": {
			Levelstat: "E1M1 - 1:23.00 (1:23)  K: 10/10  I: 5/5  S: 1/1\n",
			Analysis: "skill 4\nnomonsters 0\nrespawn 0\nfast 0\npacifist 0\n" +
				"stroller 0\nreality 0\nalmost_reality 0\n100k 1\n100s 1\n" +
				"weapon_collector 0\ntyson_weapons 0\nturbo 0\ncategory UV Max\n",
		},
	}}
	p := testPipeline(t, engine)

	outcome, err := p.ProcessArchive(context.Background(), Submission{
		ArchivePath: writeSubmissionZip(t),
		Post:        &post.Post{AuthorName: "Ancalagon"},
	})
	if err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	if len(outcome.Demos) != 1 {
		t.Fatalf("Expected one demo result, got %+v", outcome)
	}
	result := outcome.Demos[0]
	if result.Err != nil || result.PlaybackFailed {
		t.Fatalf("Expected a clean result, got %+v", result)
	}

	record := result.Record
	fields := record.Fields
	if fields["wad"] != "valiant" || fields["level"] != "E1M1" || fields["time"] != "1:23.00" {
		t.Errorf("Unexpected playback fields: %+v", fields)
	}
	if fields["category"] != "UV Max" {
		t.Errorf("Expected the agreed category, got %v", fields["category"])
	}
	if fields["engine"] != "DSDA-Doom v0.24.3cl2" {
		t.Errorf("Expected the readme engine, got %v", fields["engine"])
	}
	if fields["recorded_at"] != "2023-05-01 12:00:00 +0000" {
		t.Errorf("Expected the member timestamp, got %v", fields["recorded_at"])
	}
	if players := record.Players(); len(players) != 1 || players[0] != "Ancalagon" {
		t.Errorf("Expected the post author as player, got %v", players)
	}
	if fields["guys"] != 1 {
		t.Errorf("Expected one participant, got %v", fields["guys"])
	}
}

func TestProcessArchive_PlaybackFailureIsNotFatal(t *testing.T) {
	p := testPipeline(t, &cannedEngine{})

	outcome, err := p.ProcessArchive(context.Background(), Submission{
		ArchivePath: writeSubmissionZip(t),
	})
	if err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	result := outcome.Demos[0]
	if !result.PlaybackFailed {
		t.Errorf("Expected a playback failure marker, got %+v", result)
	}
	if result.Record != nil {
		t.Error("Expected no record for a failed playback")
	}
}

func TestProcessArchive_SkipPlayback(t *testing.T) {
	idx, err := rules.Parse([]byte(pipelineTable))
	if err != nil {
		t.Fatalf("Failed to parse rule table: %v", err)
	}
	cfg := model.DefaultConfig()
	cfg.Playback.Skip = true
	p := New(cfg, idx, nil, &cannedEngine{}, zap.NewNop())

	outcome, err := p.ProcessArchive(context.Background(), Submission{
		ArchivePath: writeSubmissionZip(t),
		Post:        &post.Post{AuthorName: "Ancalagon"},
	})
	if err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	result := outcome.Demos[0]
	if result.Err != nil || result.Record == nil {
		t.Fatalf("Expected a partial record without playback, got %+v", result)
	}
	// The playback-only fields stay unfilled and flag the record
	if !result.Record.HasIssue {
		t.Error("Expected a partial record to carry the issue flag")
	}
	if result.Record.Fields["wad"] != model.NeedsAttention {
		t.Errorf("Expected the wad to be unsettled, got %v", result.Record.Fields["wad"])
	}
}

func TestDirSink_Buckets(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, zap.NewNop())

	record := &model.Record{Fields: map[string]any{
		"players": []string{"Ancalagon"}, "category": "UV Max",
	}}
	if err := sink.Write("demos/va01-123.zip", "va01-123.lmp", record); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	clean := filepath.Join(dir, "no_issue", "va01-123_Ancalagon.json")
	if _, err := os.Stat(clean); err != nil {
		t.Errorf("Expected a clean-bucket file at %s: %v", clean, err)
	}

	record.MaybeCheated = true
	if err := sink.Write("demos/va01-123.zip", "va01-123.lmp", record); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	cheated := filepath.Join(dir, "maybe_cheated", "va01-123_Ancalagon.json")
	if _, err := os.Stat(cheated); err != nil {
		t.Errorf("Expected a maybe-cheated file at %s: %v", cheated, err)
	}
}
