package docrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"meridian/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Content is the versioned payload of a contract. Each revision is one
// commit on main in that contract's repository.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Service keeps one bare-ish git repository per contract under baseDir and
// records every body edit as a commit. History stays linear; there is no
// branching for contracts.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureContractRepo initializes the repository with the draft content as the
// first commit. No-op when the repo already exists.
func (s *Service) EnsureContractRepo(contractID string, initial Content, author string) (store.RevisionInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(contractID)
	if _, err := os.Stat(path); err == nil {
		return s.headInfo(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return store.RevisionInfo{}, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(initial, "", "  ")
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("marshal initial content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "contract.json"), append(payload, '\n'), 0o644); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("write initial content: %w", err)
	}
	if _, err := worktree.Add("contract.json"); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("git add initial content: %w", err)
	}
	hash, err := worktree.Commit("Create contract draft", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("commit initial content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("set HEAD to main: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevisionInfo(commitObj), nil
}

// CommitContent records a new revision of the contract body.
func (s *Service) CommitContent(contractID string, content Content, author, message string) (store.RevisionInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("marshal content: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, "contract.json"), append(payload, '\n'), 0o644); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("write contract.json: %w", err)
	}
	if _, err := worktree.Add("contract.json"); err != nil {
		return store.RevisionInfo{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevisionInfo(commitObj), nil
}

// GetContentByHash reads a specific revision of the contract body.
func (s *Service) GetContentByHash(contractID, hash string) (Content, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContentFromCommit(commitObj)
}

// History lists revisions, newest first.
func (s *Service) History(contractID string, limit int) ([]store.RevisionInfo, error) {
	lock := s.contractLock(contractID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(contractID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.RevisionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevisionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) headInfo(path string) (store.RevisionInfo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return store.RevisionInfo{}, fmt.Errorf("read head commit: %w", err)
	}
	return toRevisionInfo(commitObj), nil
}

func (s *Service) repoPath(contractID string) string {
	return filepath.Join(s.baseDir, contractID)
}

func (s *Service) contractLock(contractID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[contractID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[contractID] = lock
	return lock
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.meridian.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File("contract.json")
	if err != nil {
		return Content{}, fmt.Errorf("load contract.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(bytes, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func toRevisionInfo(commitObj *object.Commit) store.RevisionInfo {
	return store.RevisionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	bytes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			bytes = append(bytes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			bytes = append(bytes, '.')
		}
	}
	if len(bytes) == 0 {
		return "user"
	}
	return string(bytes)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
