package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// commitMarker prefixes the header line git prints for every commit.
// The format string asks for it with %x00 since argv cannot carry NUL.
const commitMarker = "\x00"

// Commit is one entry of a history traversal
type Commit struct {
	Time  time.Time // committer timestamp, UTC
	Files []string
}

// HistoryOptions narrows a history traversal
type HistoryOptions struct {
	Since string   // exclusive lower bound commit, empty = full history
	Paths []string // pathspecs, empty = whole tree
}

// History lists the commits reachable from HEAD, newest first, together with
// the paths each one touched. Renames are reported as delete plus add.
func (r *Repo) History(ctx context.Context, opts HistoryOptions) ([]Commit, error) {
	args := []string{"-c", "core.quotePath=false", "log", "--format=%x00%ct", "--name-only", "--no-renames"}
	if opts.Since != "" {
		args = append(args, opts.Since+"..HEAD")
	} else {
		args = append(args, "HEAD")
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Path
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w\n%s", err, stderr.String())
	}

	return parseHistory(output)
}

func parseHistory(output []byte) ([]Commit, error) {
	var commits []Commit
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, commitMarker) {
			ts, err := strconv.ParseInt(strings.TrimPrefix(line, commitMarker), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse commit timestamp %q: %w", line, err)
			}
			commits = append(commits, Commit{Time: time.Unix(ts, 0).UTC()})
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" || len(commits) == 0 {
			continue
		}
		last := &commits[len(commits)-1]
		last.Files = append(last.Files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read git log output: %w", err)
	}
	return commits, nil
}
