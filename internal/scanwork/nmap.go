// Package scanwork provides the default scan job: an nmap ping sweep over the
// configured targets with each output line streamed into the run log.
package scanwork

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var hostLine = regexp.MustCompile(`Nmap scan report for (.+) \(([\d\.]+)\)|Nmap scan report for ([\d\.]+)`)

// Host is a host reported up by nmap. Name is empty when nmap resolved none.
type Host struct {
	Name string
	IP   string
}

// ParseHost extracts the host from an nmap "scan report" line.
func ParseHost(line string) (Host, bool) {
	m := hostLine.FindStringSubmatch(line)
	switch {
	case m == nil:
		return Host{}, false
	case m[2] != "":
		return Host{Name: m[1], IP: m[2]}, true
	case m[3] != "":
		return Host{IP: m[3]}, true
	}
	return Host{}, false
}

// Nmap sweeps Targets with "nmap -sn".
type Nmap struct {
	// Path is the nmap executable.
	Path    string
	Targets []string
}

// Work runs one sweep per target. It matches scheduler.ScanWork.
func (n *Nmap) Work(ctx context.Context, emit func(line string)) error {
	if len(n.Targets) == 0 {
		return errors.New("no scan targets configured")
	}
	path := n.Path
	if path == "" {
		path = "nmap"
	}

	total := 0
	for _, target := range n.Targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit("sweeping " + target)
		hosts, err := n.sweep(ctx, path, target, emit)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", target, err)
		}
		for _, h := range hosts {
			if h.Name != "" {
				emit(fmt.Sprintf("host up: %s (%s)", h.Name, h.IP))
			} else {
				emit("host up: " + h.IP)
			}
		}
		total += len(hosts)
	}
	emit(fmt.Sprintf("scan complete: %d hosts up across %d targets", total, len(n.Targets)))
	return nil
}

func (n *Nmap) sweep(ctx context.Context, path, target string, emit func(string)) ([]Host, error) {
	cmd := exec.CommandContext(ctx, path, "-sn", target)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var hosts []Host
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		emit(line)
		if h, ok := ParseHost(line); ok {
			hosts = append(hosts, h)
		}
	}
	scanErr := sc.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return hosts, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return hosts, fmt.Errorf("%w: %s", err, msg)
		}
		return hosts, err
	}
	return hosts, scanErr
}
