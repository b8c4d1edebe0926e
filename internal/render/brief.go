// Package render produces the markdown designer's brief from a playbook.
package render

import (
	"fmt"
	"strings"

	"github.com/moglabs/lumina/internal/domain"
)

var severityOrder = []string{domain.SeverityCritical, domain.SeverityModerate, domain.SeverityMinor}

var typeLabels = map[string]string{
	domain.BulletFrictionLog:  "Friction Log",
	domain.BulletHardStrategy: "Strategy",
	domain.BulletBenchmark:    "Benchmark",
}

// Brief renders the playbook as a markdown document a designer can act
// on: findings grouped by severity, worst first, with evidence attached.
func Brief(pb domain.Playbook) string {
	var b strings.Builder

	b.WriteString("# UX Friction Playbook\n\n")
	b.WriteString(fmt.Sprintf("Session: %s  \n", pb.SessionID))
	if pb.LastUpdated != "" {
		b.WriteString(fmt.Sprintf("Last updated: %s  \n", pb.LastUpdated))
	}
	b.WriteString(fmt.Sprintf("Findings: %d\n\n", len(pb.Bullets)))

	if len(pb.Bullets) == 0 {
		b.WriteString("No friction findings yet. Upload a session recording to get started.\n")
		return b.String()
	}

	for _, severity := range severityOrder {
		bullets := bulletsWithSeverity(pb, severity)
		if len(bullets) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", strings.ToUpper(severity)))
		for _, bullet := range bullets {
			writeBullet(&b, bullet)
		}
	}

	// Anything with an unrecognized severity still shows up.
	if rest := bulletsWithSeverity(pb, ""); len(rest) > 0 {
		b.WriteString("## UNCLASSIFIED\n\n")
		for _, bullet := range rest {
			writeBullet(&b, bullet)
		}
	}

	return b.String()
}

func bulletsWithSeverity(pb domain.Playbook, severity string) []domain.Bullet {
	var out []domain.Bullet
	for _, bullet := range pb.Bullets {
		if severity == "" {
			if domain.SeverityRank(bullet.Severity) == 0 {
				out = append(out, bullet)
			}
		} else if bullet.Severity == severity {
			out = append(out, bullet)
		}
	}
	return out
}

func writeBullet(b *strings.Builder, bullet domain.Bullet) {
	label := typeLabels[bullet.BulletType]
	if label == "" {
		label = bullet.BulletType
	}

	b.WriteString(fmt.Sprintf("### %s\n\n", bullet.Title))
	b.WriteString(fmt.Sprintf("*%s · %s · seen %d time(s)*\n\n", label, bullet.Category, bullet.FrictionCount))
	b.WriteString(bullet.Content)
	b.WriteString("\n\n")

	if bullet.BenchmarkSource != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n\n", bullet.BenchmarkSource))
	}
	if bullet.FrameURL != "" {
		b.WriteString(fmt.Sprintf("![friction frame](%s)\n\n", bullet.FrameURL))
	}
	if bullet.MockupURL != "" {
		b.WriteString(fmt.Sprintf("![suggested fix](%s)\n\n", bullet.MockupURL))
	}

	if len(bullet.Evidence) > 0 {
		b.WriteString("Evidence:\n\n")
		for _, e := range bullet.Evidence {
			b.WriteString(fmt.Sprintf("- %s\n", e))
		}
		b.WriteString("\n")
	}
}
