package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nicktill/gpiolog/pkg/config"
)

// Source is a located database file that can be streamed out.
type Source struct {
	// Container is the container id, empty for host files.
	Container string
	Path      string

	copyTo func(ctx context.Context, w io.Writer) error
}

// CopyTo streams the file's bytes to w.
func (s Source) CopyTo(ctx context.Context, w io.Writer) error {
	return s.copyTo(ctx, w)
}

// Locator finds the live database file.
type Locator interface {
	Locate(ctx context.Context) (Source, error)
}

// DockerLocator finds the database inside the one running container.
type DockerLocator struct {
	Runner Runner

	// Docker is the docker binary (default "docker").
	Docker string

	// Container narrows docker ps to containers whose name matches.
	Container string

	// SearchRoot and DBName drive the find inside the container
	// (defaults "/home" and "database.db").
	SearchRoot string
	DBName     string
}

// Locate implements Locator.
func (l *DockerLocator) Locate(ctx context.Context) (Source, error) {
	docker := orDefault(l.Docker, config.DefaultDockerBin)
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	args := []string{"ps", "-q"}
	if l.Container != "" {
		args = append(args, "--filter", "name="+l.Container)
	}
	out, err := runner.Output(ctx, docker, args...)
	if err != nil {
		return Source{}, &LocatorError{Reason: "list running containers", Err: err}
	}
	ids := strings.Fields(string(out))
	switch {
	case len(ids) == 0:
		return Source{}, &LocatorError{Reason: "no running container found"}
	case len(ids) > 1:
		return Source{}, &LocatorError{Reason: fmt.Sprintf("%d running containers found, expected exactly one", len(ids))}
	}
	id := ids[0]

	root := orDefault(l.SearchRoot, config.DefaultSearchRoot)
	name := orDefault(l.DBName, config.DefaultDBName)
	out, err = runner.Output(ctx, docker, "exec", id, "find", root, "-name", name)
	// find exits non-zero on unreadable directories even when it found the
	// file, so only fail when nothing was printed.
	paths := strings.Fields(string(out))
	switch {
	case len(paths) == 0 && err != nil:
		return Source{}, &LocatorError{Reason: fmt.Sprintf("search %s in container %s", name, id), Err: err}
	case len(paths) == 0:
		return Source{}, &LocatorError{Reason: fmt.Sprintf("no %s under %s in container %s", name, root, id)}
	case len(paths) > 1:
		return Source{}, &LocatorError{Reason: fmt.Sprintf("%d files named %s in container %s, expected exactly one", len(paths), name, id)}
	}
	path := paths[0]

	return Source{
		Container: id,
		Path:      path,
		copyTo: func(ctx context.Context, w io.Writer) error {
			return runner.Stream(ctx, w, docker, "exec", id, "cat", path)
		},
	}, nil
}

// FileLocator reads the database straight from a host path.
type FileLocator struct {
	Path string
}

// Locate implements Locator.
func (l *FileLocator) Locate(ctx context.Context) (Source, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return Source{}, &LocatorError{Reason: "stat " + l.Path, Err: err}
	}
	if info.IsDir() {
		return Source{}, &LocatorError{Reason: l.Path + " is a directory"}
	}

	path := l.Path
	return Source{
		Path: path,
		copyTo: func(ctx context.Context, w io.Writer) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		},
	}, nil
}

// NewLocator picks a FileLocator when sourcePath is set and a DockerLocator otherwise.
func NewLocator(cfg config.Exporter, runner Runner) Locator {
	if cfg.SourcePath != "" {
		return &FileLocator{Path: cfg.SourcePath}
	}
	return &DockerLocator{
		Runner:     runner,
		Docker:     cfg.DockerBin,
		Container:  cfg.Container,
		SearchRoot: cfg.SearchRoot,
		DBName:     cfg.DBName,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
