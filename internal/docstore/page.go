package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	_ "image/jpeg"
)

// Page is a page stored as paper.<n+1>.png with its word boxes in
// paper.<n+1>.words.
type Page struct {
	n   int
	dir string
}

var _ model.Page = (*Page)(nil)

func imageName(n int) string {
	return "paper." + strconv.Itoa(n+1) + ".png"
}

func wordsName(n int) string {
	return "paper." + strconv.Itoa(n+1) + ".words"
}

// pageIndex returns the 0-based page number of a page image file name.
func pageIndex(name string) (int, bool) {
	s, ok := strings.CutPrefix(name, "paper.")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, ".png")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func (p *Page) Number() int {
	return p.n
}

func (p *Page) Image() (image.Image, error) {
	f, err := os.Open(filepath.Join(p.dir, imageName(p.n)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding page %d: %w", p.n, err)
	}
	return img, nil
}

func (p *Page) Thumbnail(width int) (image.Image, error) {
	img, err := p.Image()
	if err != nil {
		return nil, err
	}
	return imgutil.FitWidth(img, width)
}

// Lines returns the word boxes grouped by OCR line. A page never processed
// by OCR has none.
func (p *Page) Lines() ([][]model.Box, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, wordsName(p.n)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines [][]model.Box
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decoding words of page %d: %w", p.n, err)
	}
	return lines, nil
}

func (p *Page) Boxes() ([]model.Box, error) {
	lines, err := p.Lines()
	if err != nil {
		return nil, err
	}
	var ret []model.Box
	for _, line := range lines {
		ret = append(ret, line...)
	}
	return ret, nil
}

// FindBoxes returns the boxes whose word contains any keyword of query,
// ignoring case.
func (p *Page) FindBoxes(query string) ([]model.Box, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}
	boxes, err := p.Boxes()
	if err != nil {
		return nil, err
	}
	var ret []model.Box
	for _, b := range boxes {
		word := strings.ToLower(b.Word)
		for _, k := range keywords {
			if strings.Contains(word, k) {
				ret = append(ret, b)
				break
			}
		}
	}
	return ret, nil
}

func (p *Page) Text() ([]string, error) {
	lines, err := p.Lines()
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(lines))
	for _, line := range lines {
		words := make([]string, len(line))
		for i, b := range line {
			words[i] = b.Word
		}
		ret = append(ret, strings.Join(words, " "))
	}
	return ret, nil
}

// AddPage appends a page to the document. Files are written to a temporary
// name first, the page exists once its image is renamed in place.
func (d *Document) AddPage(img image.Image, lines [][]model.Box) (model.Page, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	n := d.pages
	words, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}
	if err := writeFile(d.dir, wordsName(n), func(f *os.File) error {
		_, err := f.Write(words)
		return err
	}); err != nil {
		return nil, fmt.Errorf("writing words of page %d: %w", n, err)
	}
	if err := writeFile(d.dir, imageName(n), func(f *os.File) error {
		return png.Encode(f, img)
	}); err != nil {
		return nil, fmt.Errorf("writing page %d: %w", n, err)
	}
	d.pages++
	return &Page{n: n, dir: d.dir}, nil
}

func writeFile(dir, name string, write func(*os.File) error) (err error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filepath.Join(dir, name))
}
