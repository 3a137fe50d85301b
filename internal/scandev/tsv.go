package scandev

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/Paperwork/internal/model"
)

const (
	tsvColumns = 12
	levelWord  = "5"
)

type lineKey struct {
	page, block, par, line int
}

// ParseTSV reads the word boxes from tesseract TSV output, grouped by text
// line in reading order. Empty words and non word rows are skipped.
func ParseTSV(r io.Reader) ([][]model.Box, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		ret  [][]model.Box
		last lineKey
	)
	for rowno := 1; sc.Scan(); rowno++ {
		if rowno == 1 && strings.HasPrefix(sc.Text(), "level") {
			continue
		}
		cols := strings.SplitN(sc.Text(), "\t", tsvColumns)
		if len(cols) < tsvColumns || cols[0] != levelWord {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		nums, err := atois(cols[1:10])
		if err != nil {
			return nil, fmt.Errorf("tsv row %d: %w", rowno, err)
		}
		key := lineKey{page: nums[0], block: nums[1], par: nums[2], line: nums[3]}
		left, top, width, height := nums[5], nums[6], nums[7], nums[8]
		box := model.Box{
			Word: word,
			Rect: image.Rect(left, top, left+width, top+height),
		}
		if len(ret) == 0 || key != last {
			ret = append(ret, nil)
			last = key
		}
		ret[len(ret)-1] = append(ret[len(ret)-1], box)
	}
	return ret, sc.Err()
}

func atois(ss []string) ([]int, error) {
	ret := make([]int, len(ss))
	for i, s := range ss {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ret[i] = n
	}
	return ret, nil
}
