// Package archive unpacks demo submission archives. A submission is a zip
// holding one or more recorded demos plus optional readme textfiles; members
// pair up by base filename, and a member named after the archive itself is
// the authoritative one.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Demo file extensions across the engines the archive accepts.
var demoExtensions = []string{".lmp", ".cdm", ".zdd"}

// Demo is one extracted demo with its paired metadata.
type Demo struct {
	// Name is the member path inside the archive
	Name string
	// Path is the extracted file on disk
	Path string
	// RecordedAt is the member's timestamp, the best signal for when the
	// demo was recorded
	RecordedAt time.Time
	// TextfilePath is the extracted readme paired by base filename, or ""
	TextfilePath string
	TextfileDate time.Time
}

// Archive is an opened submission. Close removes everything it extracted.
type Archive struct {
	Path  string
	Demos []Demo

	// PrimaryTextfile is the archive's main readme: the one named after
	// the archive, or the only one present.
	PrimaryTextfile     string
	PrimaryTextfileDate time.Time

	dir string
}

// Open unpacks the archive into a fresh temporary directory. It fails when
// the file is not a readable zip or holds no demos; a missing readme is not
// an error.
func Open(path string, log *zap.Logger) (*Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer reader.Close()

	dir, err := os.MkdirTemp("", "demoscribe-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	a := &Archive{Path: path, dir: dir}
	if err := a.scan(&reader.Reader, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close removes the extraction directory. Callers must Close on both
// success and failure paths; extracted files do not outlive the demo.
func (a *Archive) Close() error {
	return os.RemoveAll(a.dir)
}

func (a *Archive) scan(reader *zip.Reader, log *zap.Logger) error {
	stem := fileStem(a.Path)

	type txtMember struct {
		file *zip.File
		date time.Time
	}
	var demoMembers []*zip.File
	txtMembers := make(map[string]txtMember)
	var mainDemo, mainTxt string

	for _, member := range reader.File {
		name := strings.ToLower(member.Name)
		switch {
		case isDemoName(name):
			demoMembers = append(demoMembers, member)
			if fileStem(name) == stem {
				mainDemo = member.Name
			}
		case strings.HasSuffix(name, ".txt"):
			txtMembers[member.Name] = txtMember{file: member, date: member.Modified}
			if fileStem(name) == stem {
				mainTxt = member.Name
			}
		}
	}

	if len(demoMembers) == 0 {
		return fmt.Errorf("archive %s holds no demo files", a.Path)
	}
	if mainTxt == "" && len(txtMembers) == 1 {
		for name := range txtMembers {
			mainTxt = name
		}
	}
	if mainTxt == "" && len(txtMembers) > 1 {
		log.Warn("multiple readmes with no primary", zap.String("archive", a.Path))
	}

	// A demo named after the archive shadows its siblings: the rest are
	// alternate perspectives or rejected attempts.
	if mainDemo != "" {
		for _, member := range demoMembers {
			if member.Name == mainDemo {
				demoMembers = []*zip.File{member}
				break
			}
		}
	}

	for _, member := range demoMembers {
		demo := Demo{
			Name:       member.Name,
			RecordedAt: member.Modified,
		}
		path, err := a.extract(member)
		if err != nil {
			return err
		}
		demo.Path = path

		for txtName, txt := range txtMembers {
			if fileStem(strings.ToLower(txtName)) != fileStem(strings.ToLower(member.Name)) {
				continue
			}
			txtPath, err := a.extract(txt.file)
			if err != nil {
				return err
			}
			demo.TextfilePath = txtPath
			demo.TextfileDate = txt.date
			break
		}
		a.Demos = append(a.Demos, demo)
	}

	if mainTxt != "" {
		txt := txtMembers[mainTxt]
		path, err := a.extract(txt.file)
		if err != nil {
			return err
		}
		a.PrimaryTextfile = path
		a.PrimaryTextfileDate = txt.date
	}
	return nil
}

// extract writes one member under the extraction dir, flattening any
// member sub-directories.
func (a *Archive) extract(member *zip.File) (string, error) {
	target := filepath.Join(a.dir, filepath.Base(member.Name))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	src, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("read member %s: %w", member.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("extract member %s: %w", member.Name, err)
	}
	return target, nil
}

func isDemoName(name string) bool {
	for _, ext := range demoExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
