package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/vidframes/internal/job"
	"github.com/maauso/vidframes/internal/pipeline"
)

// partialMark flags counts of videos whose decode stopped early.
const partialMark = "*"

// renderSummary prints one row per video followed by a totals line.
// Total counts every frame on disk, including ones kept from earlier runs.
// Videos that timed out or were cancelled keep the frames written before
// they stopped; their Total is marked as partial.
func renderSummary(s *pipeline.Summary, published bool) string {
	headers := []string{"Video", "Status", "Resumed", "New", "Total", "Degraded"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	if published {
		headers = append(headers, "Published")
		aligns = append(aligns, alignRight)
	}
	headers = append(headers, "Error")
	aligns = append(aligns, alignLeft)

	partial := false
	rows := make([][]string, 0, len(s.Videos))
	for _, v := range s.Videos {
		total := strconv.Itoa(v.TotalFrames)
		if isPartial(v.Status) {
			total += partialMark
			partial = true
		}
		row := []string{
			v.Name,
			string(v.Status),
			strconv.Itoa(v.ResumedFrom),
			strconv.Itoa(v.NewFrames),
			total,
			yesNo(v.Degraded),
		}
		if published {
			row = append(row, strconv.Itoa(v.Published))
		}
		row = append(row, v.Error)
		rows = append(rows, row)
	}

	var b strings.Builder
	if len(rows) > 0 {
		b.WriteString(renderTable(headers, rows, aligns))
		b.WriteString("\n")
	}
	if partial {
		b.WriteString(partialMark + " partial: decoding stopped before the end of the video\n")
	}
	fmt.Fprintf(&b, "%s: %d videos, %d failed, %d new frames from %d part(s) in %s",
		s.RunID,
		len(s.Videos),
		s.Failed(),
		s.NewFrames(),
		len(s.Parts),
		s.Duration.Round(time.Millisecond),
	)
	return b.String()
}

func isPartial(status job.Status) bool {
	return status == job.StatusTimedOut || status == job.StatusCancelled
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
