// Package gitrepo 封装设计库的git底层原语（建分支/检出/合并）
// 上层组件只通过这里访问版本库，不直接接触go-git对象
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// 版本库固定的提交签名身份
const (
	committerName  = "nimo-pdm"
	committerEmail = "pdm@bitfantasy.com"
)

var (
	// ErrBranchExists 目标分支已存在
	ErrBranchExists = errors.New("branch already exists")
	// ErrBranchNotFound 分支不存在
	ErrBranchNotFound = errors.New("branch not found")
)

// Repository 设计库句柄，包装单个本地git仓库
type Repository struct {
	path string
	repo *git.Repository
}

// Open 打开已有仓库，不存在时初始化并写入首个提交
// 分支引用必须有提交可指，所以空仓库先落一个README
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return initRepo(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo}, nil
}

func initRepo(path string) (*Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repository dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}
	r := &Repository{path: path, repo: repo}
	readme := filepath.Join(path, "README.md")
	if err := os.WriteFile(readme, []byte("# Design vault\n\nManaged by nimo-pdm. One branch per part revision.\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write initial file: %w", err)
	}
	if _, err := r.commitAll("chore: initialize design vault"); err != nil {
		return nil, err
	}
	return r, nil
}

// Path 仓库工作区路径
func (r *Repository) Path() string {
	return r.path
}

// Head 当前HEAD提交hash
func (r *Repository) Head() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// BranchExists 判断分支是否存在
func (r *Repository) BranchExists(name string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve branch %s: %w", name, err)
	}
	return true, nil
}

// CreateBranch 从base分支头建新分支；base为空时取HEAD
// 分支已存在返回ErrBranchExists，由调用方映射为命名冲突
func (r *Repository) CreateBranch(name, base string) error {
	exists, err := r.BranchExists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create branch %s: %w", name, ErrBranchExists)
	}

	var hash plumbing.Hash
	if base == "" {
		head, err := r.repo.Head()
		if err != nil {
			return fmt.Errorf("resolve HEAD for branch %s: %w", name, err)
		}
		hash = head.Hash()
	} else {
		ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(base), true)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("base branch %s: %w", base, ErrBranchNotFound)
		}
		if err != nil {
			return fmt.Errorf("resolve base branch %s: %w", base, err)
		}
		hash = ref.Hash()
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch 删除分支引用（仅用于建版失败时的补偿回滚，不在正常流程中调用）
func (r *Repository) DeleteBranch(name string) error {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, true); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err := r.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

// CurrentBranch 当前HEAD指向的分支名；HEAD游离或悬空时返回ErrBranchNotFound
func (r *Repository) CurrentBranch() (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("detached HEAD: %w", ErrBranchNotFound)
	}
	return ref.Target().Short(), nil
}

// ResetToBranch 强制检出分支并清掉未跟踪文件
// 补偿回滚路径使用：把HEAD与工作区恢复到失败操作之前的分支，
// 之后再删除已建分支才不会留下悬空HEAD
func (r *Repository) ResetToBranch(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("reset to branch %s: %w", name, err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("clean worktree: %w", err)
	}
	return nil
}

// CheckoutBranch 检出分支到工作区
func (r *Repository) CheckoutBranch(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)})
	if err != nil {
		return fmt.Errorf("checkout branch %s: %w", name, err)
	}
	return nil
}

// MergeBranch 将source合入target，返回目标分支新的提交hash
// target落后于source时直接快进；否则生成双亲合并提交，树取source侧
// （版本分支是该版本的权威内容，合并语义为版本分支胜出）
func (r *Repository) MergeBranch(source, target string) (string, error) {
	srcRef, err := r.repo.Reference(plumbing.NewBranchReferenceName(source), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("source branch %s: %w", source, ErrBranchNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve source branch %s: %w", source, err)
	}
	dstRefName := plumbing.NewBranchReferenceName(target)
	dstRef, err := r.repo.Reference(dstRefName, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("target branch %s: %w", target, ErrBranchNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve target branch %s: %w", target, err)
	}

	if srcRef.Hash() == dstRef.Hash() {
		return dstRef.Hash().String(), nil
	}

	srcCommit, err := r.repo.CommitObject(srcRef.Hash())
	if err != nil {
		return "", fmt.Errorf("load source commit: %w", err)
	}
	dstCommit, err := r.repo.CommitObject(dstRef.Hash())
	if err != nil {
		return "", fmt.Errorf("load target commit: %w", err)
	}

	// 快进
	if ancestor, err := dstCommit.IsAncestor(srcCommit); err == nil && ancestor {
		ref := plumbing.NewHashReference(dstRefName, srcRef.Hash())
		if err := r.repo.Storer.SetReference(ref); err != nil {
			return "", fmt.Errorf("fast-forward %s: %w", target, err)
		}
		return srcRef.Hash().String(), nil
	}

	sig := object.Signature{Name: committerName, Email: committerEmail, When: time.Now()}
	merge := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      fmt.Sprintf("Merge branch '%s' into %s", source, target),
		TreeHash:     srcCommit.TreeHash,
		ParentHashes: []plumbing.Hash{dstRef.Hash(), srcRef.Hash()},
	}
	obj := r.repo.Storer.NewEncodedObject()
	if err := merge.Encode(obj); err != nil {
		return "", fmt.Errorf("encode merge commit: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("store merge commit: %w", err)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(dstRefName, hash)); err != nil {
		return "", fmt.Errorf("update target branch %s: %w", target, err)
	}
	return hash.String(), nil
}

// ScaffoldPartDirs 为零件建立标准目录骨架并提交到当前分支
// 目录内容由CAD等外部工具写入，本核心不解释
func (r *Repository) ScaffoldPartDirs(displayID string) (string, error) {
	for _, sub := range []string{"design", "manufacturing", "documentation"} {
		dir := filepath.Join(r.path, "parts", displayID, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("scaffold %s: %w", dir, err)
		}
		keep := filepath.Join(dir, ".gitkeep")
		if err := os.WriteFile(keep, nil, 0o644); err != nil {
			return "", fmt.Errorf("scaffold %s: %w", keep, err)
		}
	}
	return r.commitAll(fmt.Sprintf("chore: scaffold part %s", displayID))
}

// CommitFile 写入单个文件并提交（测试和工具链使用）
func (r *Repository) CommitFile(relPath, content, message string) (string, error) {
	abs := filepath.Join(r.path, relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	return r.commitAll(message)
}

func (r *Repository) commitAll(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddGlob("."); err != nil {
		return "", fmt.Errorf("stage changes: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: committerName, Email: committerEmail, When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}
