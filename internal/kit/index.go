package kit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/qmakestep/internal/msg"
)

const (
	IndexFilename = "qmakestep_kits.json"
	indexBranch   = "main"
)

// IndexRepoURL is where the shared kit index lives.
var IndexRepoURL = "https://github.com/qobs-build/qmakestep-kits.git"

var errKitNotFound = errors.New("kit not found in index")

// Entry is one registered kit file.
type Entry struct {
	// File is relative to the index directory unless absolute.
	File        string `json:"file"`
	Description string `json:"description,omitempty"`
}

// Index maps kit names to kit files. The global one is a git checkout in
// the user cache dir (~/.cache/qmakestep/kits, %LocalAppData%\qmakestep\kits);
// any directory holding a qmakestep_kits.json is a local one.
type Index struct {
	dir  string
	Kits map[string]Entry
}

func ReadIndex(r io.Reader, dir string) (*Index, error) {
	kits := map[string]Entry{}
	if err := json.NewDecoder(r).Decode(&kits); err != nil {
		return nil, fmt.Errorf("malformed kit index: %w", err)
	}
	return &Index{dir: dir, Kits: kits}, nil
}

// OpenIndex reads the index file stored in dir.
func OpenIndex(dir string) (*Index, error) {
	f, err := os.Open(filepath.Join(dir, IndexFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadIndex(f, dir)
}

func (idx *Index) Save(dir string) error {
	data, err := json.MarshalIndent(idx.Kits, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, IndexFilename), append(data, '\n'), 0644)
}

// Add registers e under name and reports whether an older entry was replaced.
func (idx *Index) Add(name string, e Entry) bool {
	if idx.Kits == nil {
		idx.Kits = make(map[string]Entry)
	}
	_, replaced := idx.Kits[name]
	idx.Kits[name] = e
	return replaced
}

func (idx *Index) Remove(name string) bool {
	if _, ok := idx.Kits[name]; !ok {
		return false
	}
	delete(idx.Kits, name)
	return true
}

// Path resolves the kit file registered under name.
func (idx *Index) Path(name string) (string, error) {
	e, ok := idx.Kits[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", errKitNotFound, name)
	}
	if filepath.IsAbs(e.File) {
		return e.File, nil
	}
	return filepath.Join(idx.dir, filepath.FromSlash(e.File)), nil
}

// Search returns the sorted names whose name, file or description contains
// term, case-insensitively. An empty term matches everything.
func (idx *Index) Search(term string) []string {
	term = strings.ToLower(term)
	var names []string
	for _, name := range slices.Sorted(maps.Keys(idx.Kits)) {
		e := idx.Kits[name]
		hay := strings.ToLower(name + "\x00" + e.File + "\x00" + e.Description)
		if strings.Contains(hay, term) {
			names = append(names, name)
		}
	}
	return names
}

// syncRepo clones the index repository into dir, or fast-forwards an
// existing checkout.
func syncRepo(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	progress := &msg.IndentWriter{Indent: "    ", W: msg.Out}
	ref := plumbing.NewBranchReferenceName(indexBranch)

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		fmt.Fprintf(msg.Out, "  %s kit index\n", color.HiGreenString("Fetching"))
		_, err = git.PlainClone(dir, &git.CloneOptions{
			URL:           IndexRepoURL,
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         1,
			Progress:      progress,
		})
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(msg.Out, "  %s kit index\n", color.HiGreenString("Updating"))
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.Pull(&git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         1,
		Progress:      progress,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

var global struct {
	sync.Mutex
	idx *Index
}

func globalIndexDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "qmakestep", "kits"), nil
}

// GlobalIndex returns the cached global index. It is cloned on first use;
// refresh pulls the latest revision first.
func GlobalIndex(refresh bool) (*Index, error) {
	global.Lock()
	defer global.Unlock()
	if global.idx != nil && !refresh {
		return global.idx, nil
	}

	dir, err := globalIndexDir()
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(filepath.Join(dir, IndexFilename))
	if refresh || errors.Is(statErr, os.ErrNotExist) {
		if err := syncRepo(dir); err != nil {
			return nil, fmt.Errorf("failed to sync kit index: %w", err)
		}
	}
	idx, err := OpenIndex(dir)
	if err != nil {
		return nil, err
	}
	global.idx = idx
	return idx, nil
}

// LookupKitFile finds name in the local index of dir, falling back to the
// global index only when the local one does not know it.
func LookupKitFile(dir, name string) (string, error) {
	if local, err := OpenIndex(dir); err == nil {
		if path, err := local.Path(name); err == nil {
			return path, nil
		}
	}
	idx, err := GlobalIndex(false)
	if err != nil {
		return "", fmt.Errorf("failed to load global kit index: %w", err)
	}
	return idx.Path(name)
}
