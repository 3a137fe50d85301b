package docstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

// readLabels parses a labels file, one "name,#rrggbb" per line. The name may
// contain commas.
func readLabels(name string) ([]model.Label, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ret []model.Label
	sc := bufio.NewScanner(bytes.NewReader(data))
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx <= 0 {
			return nil, fmt.Errorf("labels line %d: missing color", lineno)
		}
		c, err := imgutil.ParseHexColor(line[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("labels line %d: %w", lineno, err)
		}
		ret = append(ret, model.Label{Name: line[:idx], Color: imgutil.HexColor(c)})
	}
	return ret, sc.Err()
}

func (d *Document) writeLabels(labels []model.Label) error {
	var buf bytes.Buffer
	for _, l := range labels {
		fmt.Fprintf(&buf, "%s,%s\n", l.Name, l.Color)
	}
	return writeFile(d.dir, labelsFile, func(f *os.File) error {
		_, err := f.Write(buf.Bytes())
		return err
	})
}

func validLabel(l model.Label) (model.Label, error) {
	name := strings.TrimSpace(l.Name)
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return l, fmt.Errorf("invalid label name %q", l.Name)
	}
	c, err := imgutil.ParseHexColor(l.Color)
	if err != nil {
		return l, fmt.Errorf("label %s: %w", name, err)
	}
	return model.Label{Name: name, Color: imgutil.HexColor(c)}, nil
}

// SetLabels replaces the labels of the document, sorted by name.
func (d *Document) SetLabels(labels []model.Label) error {
	clean := make([]model.Label, 0, len(labels))
	for _, l := range labels {
		l, err := validLabel(l)
		if err != nil {
			return err
		}
		clean = append(clean, l)
	}
	slices.SortFunc(clean, func(a, b model.Label) int {
		return strings.Compare(a.Name, b.Name)
	})
	clean = slices.CompactFunc(clean, func(a, b model.Label) bool {
		return a.Name == b.Name
	})

	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.writeLabels(clean); err != nil {
		return fmt.Errorf("writing labels of %s: %w", d.id, err)
	}
	d.labels = clean
	return nil
}

// AddLabel attaches l, replacing the color of a label with the same name.
func (d *Document) AddLabel(l model.Label) error {
	labels := slices.DeleteFunc(d.Labels(), func(x model.Label) bool {
		return x.Name == l.Name
	})
	return d.SetLabels(append(labels, l))
}

// RemoveLabel detaches the label named like l. It is a no-op when the
// document does not carry it.
func (d *Document) RemoveLabel(l model.Label) error {
	labels := d.Labels()
	n := len(labels)
	labels = slices.DeleteFunc(labels, func(x model.Label) bool {
		return x.Name == l.Name
	})
	if len(labels) == n {
		return nil
	}
	return d.SetLabels(labels)
}

// HasLabel reports whether the document carries a label named like l.
func (d *Document) HasLabel(l model.Label) bool {
	return slices.ContainsFunc(d.Labels(), func(x model.Label) bool {
		return x.Name == l.Name
	})
}
