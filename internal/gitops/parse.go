package gitops

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status is the parsed output of git status --porcelain --branch.
type Status struct {
	Branch    string
	Ahead     int
	Behind    int
	Staged    []string
	Modified  []string
	Untracked []string
}

// Clean reports whether the working tree has no changes at all.
func (s Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 && len(s.Untracked) == 0
}

// DiffStat is the parsed output of git diff --stat.
type DiffStat struct {
	Files      []string
	Insertions int
	Deletions  int
}

// Commit is one entry of the abbreviated log format hash|author|date|subject.
type Commit struct {
	Hash    string
	Author  string
	Date    string
	Subject string
}

var (
	aheadRe  = regexp.MustCompile(`ahead (\d+)`)
	behindRe = regexp.MustCompile(`behind (\d+)`)
)

// parsePorcelain parses porcelain v1 output with a leading ## branch line.
// The two status columns classify each path: untracked (??), staged (first
// column set), or modified in the work tree (second column set).
func parsePorcelain(out string) Status {
	var st Status
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			branch := strings.TrimPrefix(line, "## ")
			if i := strings.Index(branch, "..."); i >= 0 {
				branch = branch[:i]
			} else if i := strings.Index(branch, " ["); i >= 0 {
				branch = branch[:i]
			}
			st.Branch = branch
			if m := aheadRe.FindStringSubmatch(line); m != nil {
				st.Ahead, _ = strconv.Atoi(m[1])
			}
			if m := behindRe.FindStringSubmatch(line); m != nil {
				st.Behind, _ = strconv.Atoi(m[1])
			}
			continue
		}

		code, path := line[:2], strings.TrimSpace(line[3:])
		// Renames and copies list "old -> new"; keep the current path.
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		switch {
		case code == "??":
			st.Untracked = append(st.Untracked, path)
		default:
			if code[0] != ' ' {
				st.Staged = append(st.Staged, path)
			}
			if code[1] != ' ' {
				st.Modified = append(st.Modified, path)
			}
		}
	}
	return st
}

// parseDiffStat parses git diff --stat output: per-file lines joined by a
// pipe, then a summary line with insertion and deletion counts.
func parseDiffStat(out string) DiffStat {
	var ds DiffStat
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.Index(line, "|"); i >= 0 {
			ds.Files = append(ds.Files, strings.TrimSpace(line[:i]))
			continue
		}
		// Summary line, e.g. "3 files changed, 42 insertions(+), 7 deletions(-)"
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			fields := strings.Fields(part)
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(fields[1], "insertion"):
				ds.Insertions = n
			case strings.HasPrefix(fields[1], "deletion"):
				ds.Deletions = n
			}
		}
	}
	return ds
}

// parseLog parses lines of the pretty format %h|%an|%ar|%s. Subjects may
// themselves contain pipes, so the split is capped at four fields.
func parseLog(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Date:    parts[2],
			Subject: parts[3],
		})
	}
	return commits
}

// CommitMessage derives a short commit subject from the changed file set.
func CommitMessage(files []string) string {
	switch n := len(files); {
	case n == 0:
		return "Update workspace"
	case n == 1:
		return "Update " + files[0]
	case n <= 3:
		return "Update " + strings.Join(files, ", ")
	default:
		return fmt.Sprintf("Update %d files", n)
	}
}
