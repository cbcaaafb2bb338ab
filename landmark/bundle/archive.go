package bundle

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/example/landmark-lite/internal/fsops"
	"github.com/example/landmark-lite/landmark/domain"
)

// Archive entry names.
const (
	DomainEntry   = "domain.pddl"
	GoalsEntry    = "hyps.dat"
	TemplateEntry = "template.pddl"
)

// maxEntrySize bounds a single archive entry read into memory.
const maxEntrySize = 64 << 20

// LoadArchive reads the packaged form of an analysis input: a bzip2
// compressed tar holding domain.pddl, hyps.dat and template.pddl. Entries
// are matched by base name, so a single leading directory is accepted; two
// entries with the same base name make the archive corrupt.
// The domain is extracted into the bundle's staging directory.
func LoadArchive(archivePath string, opts ...Option) (*Bundle, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	entries, err := readArchive(archivePath)
	if err != nil {
		return nil, err
	}

	for _, required := range []struct {
		name     string
		resource domain.Resource
	}{
		{DomainEntry, domain.ResourceDomain},
		{GoalsEntry, domain.ResourceGoals},
		{TemplateEntry, domain.ResourceTemplate},
	} {
		if _, ok := entries[required.name]; !ok {
			return nil, resourceErr(required.resource, archivePath+":"+required.name,
				fmt.Errorf("%w: archive entry %s", domain.ErrNotFound, required.name))
		}
	}

	goals, err := decodeGoals(entries[GoalsEntry])
	if err != nil {
		return nil, resourceErr(domain.ResourceGoals, archivePath+":"+GoalsEntry, err)
	}

	b := newBundle(o)
	if err := fsops.EnsureDir(b.StagingDir); err != nil {
		return nil, err
	}
	domainPath := filepath.Join(b.StagingDir, DomainEntry)
	if err := fsops.AtomicWrite(domainPath, entries[DomainEntry], 0o644); err != nil {
		_ = os.RemoveAll(b.StagingDir)
		return nil, fmt.Errorf("failed to extract %s: %w", DomainEntry, err)
	}
	absDomain, err := filepath.Abs(domainPath)
	if err != nil {
		_ = os.RemoveAll(b.StagingDir)
		return nil, resourceErr(domain.ResourceDomain, domainPath, err)
	}

	b.DomainPath = absDomain
	b.Goals = goals
	b.Template = string(entries[TemplateEntry])

	b.logger.Debug("loaded bundle from archive",
		"archive", archivePath,
		"domain", b.DomainPath,
		"goals", len(b.Goals),
		"staging_dir", b.StagingDir)
	return b, nil
}

// readArchive returns the contents of the known entries found in the archive.
func readArchive(archivePath string) (map[string][]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, resourceErr(domain.ResourceArchive, archivePath, err)
	}
	defer f.Close()

	wanted := map[string]bool{DomainEntry: true, GoalsEntry: true, TemplateEntry: true}
	entries := make(map[string][]byte, len(wanted))

	tr := tar.NewReader(bzip2.NewReader(f))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corruptErr(archivePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Base(path.Clean(hdr.Name))
		if !wanted[name] {
			continue
		}
		if _, seen := entries[name]; seen {
			return nil, corruptErr(archivePath, fmt.Errorf("ambiguous entry %s: more than one %s in archive", hdr.Name, name))
		}
		if hdr.Size > maxEntrySize {
			return nil, corruptErr(archivePath, fmt.Errorf("entry %s is %d bytes, limit %d", name, hdr.Size, maxEntrySize))
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return nil, corruptErr(archivePath, err)
		}
		entries[name] = data
	}
	return entries, nil
}

func corruptErr(archivePath string, err error) error {
	return resourceErr(domain.ResourceArchive, archivePath, fmt.Errorf("%w: %v", domain.ErrCorruptArchive, err))
}
