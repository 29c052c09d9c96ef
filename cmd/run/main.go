package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lswt"
)

const fnameDone = "done.txt"

var (
	modelPath = flag.String("model", "", "path to the JSON model file")
	qPath     = flag.String("q", "", "path to a CSV file of Q points (h,k,l per row, no header)")
	outDir    = flag.String("out", filepath.Join("runs", "lswt"), "output directory")
)

// jsonSite mirrors lswt.Site with JSON-friendly matrix/complex encodings.
type jsonSite struct {
	Position   [3]float64   `json:"position"`
	Moment     [3]float64   `json:"moment"`
	G          [][]float64  `json:"g,omitempty"`
	Complex    *[3][2]float64 `json:"complex,omitempty"` // [real,imag] per component
	FormFactor []float64    `json:"formFactor,omitempty"` // [A,a,B,b,C,c,D] dipole-approximation coefficients; nil disables
}

type jsonCoupling struct {
	SiteI int         `json:"siteI"`
	SiteJ int         `json:"siteJ"`
	DR    [3]float64  `json:"dr"`
	J     [][]float64 `json:"j"`
}

type jsonBiquadratic struct {
	SiteI int        `json:"siteI"`
	SiteJ int        `json:"siteJ"`
	DR    [3]float64 `json:"dr"`
	J     float64    `json:"j"`
}

type jsonTwin struct {
	R      [][]float64 `json:"r"`
	Weight float64     `json:"weight"`
}

type jsonModel struct {
	NExt        [3]int            `json:"nExt"`
	Sites       []jsonSite        `json:"sites"`
	Bilinear    []jsonCoupling    `json:"bilinear"`
	Biquadratic []jsonBiquadratic `json:"biquadratic"`
	Field       struct {
		H   [3]float64 `json:"h"`
		MuB float64    `json:"muB"`
	} `json:"field"`
	Twins []jsonTwin `json:"twins"`
	State struct {
		K   [3]float64 `json:"k"`
		N   [3]float64 `json:"n"`
		Tol float64    `json:"tol"`
	} `json:"state"`
	Options struct {
		Hermit              bool    `json:"hermit"`
		FastMode            bool    `json:"fastMode"`
		NeutronOutput       bool    `json:"neutronOutput"`
		FormFactor          bool    `json:"formFactor"`
		OmegaTol            float64 `json:"omegaTol"`
		Tol                 float64 `json:"tol"`
		SortMode            int     `json:"sortMode"`
		Fallback            int     `json:"fallback"`
		ThreadCount         int     `json:"threadCount"`
		ChunkOverride       int     `json:"chunkOverride"`
		NFormula            int     `json:"nFormula"`
		ReturnV             bool    `json:"returnV"`
		ReturnHMatrix       bool    `json:"returnHMatrix"`
		ReturnSabp          bool    `json:"returnSabp"`
		MemoryBudgetBytes   int64   `json:"memoryBudgetBytes"`
		SpillThresholdBytes int64   `json:"spillThresholdBytes"`
	} `json:"options"`
}

func denseOrNil(rows [][]float64) mat.Matrix {
	if rows == nil {
		return nil
	}
	n := len(rows)
	flat := make([]float64, 0, n*n)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return mat.NewDense(n, n, flat)
}

// dipoleFormFactor builds spec §4.G's magnetic form factor from the
// seven-coefficient dipole approximation A,a,B,b,C,c,D:
//
//	F(s) = A*exp(-a*s^2) + B*exp(-b*s^2) + C*exp(-c*s^2) + D, s = |Q|/4pi
func dipoleFormFactor(coef []float64) func(float64) float64 {
	if len(coef) != 7 {
		return nil
	}
	a, b, c, d, e, f, g := coef[0], coef[1], coef[2], coef[3], coef[4], coef[5], coef[6]
	return func(qAbs float64) float64 {
		s2 := (qAbs / (4 * math.Pi)) * (qAbs / (4 * math.Pi))
		return a*math.Exp(-b*s2) + c*math.Exp(-d*s2) + e*math.Exp(-f*s2) + g
	}
}

func toInput(m jsonModel) lswt.Input {
	in := lswt.Input{NExt: m.NExt}

	in.Sites = make([]lswt.Site, len(m.Sites))
	for i, s := range m.Sites {
		site := lswt.Site{Position: s.Position, Moment: s.Moment, G: denseOrNil(s.G)}
		if s.Complex != nil {
			var c [3]complex128
			for k := 0; k < 3; k++ {
				c[k] = complex(s.Complex[k][0], s.Complex[k][1])
			}
			site.Complex = &c
		}
		if ff := dipoleFormFactor(s.FormFactor); ff != nil {
			site.FormFactor = ff
		}
		in.Sites[i] = site
	}

	in.Bilinear = make([]lswt.Coupling, len(m.Bilinear))
	for i, c := range m.Bilinear {
		in.Bilinear[i] = lswt.Coupling{SiteI: c.SiteI, SiteJ: c.SiteJ, DR: c.DR, J: denseOrNil(c.J)}
	}

	in.Biquadratic = make([]lswt.Biquadratic, len(m.Biquadratic))
	for i, c := range m.Biquadratic {
		in.Biquadratic[i] = lswt.Biquadratic{SiteI: c.SiteI, SiteJ: c.SiteJ, DR: c.DR, J: c.J}
	}

	in.Field = lswt.Field{H: m.Field.H, MuB: m.Field.MuB}

	in.Twins = make([]lswt.Twin, len(m.Twins))
	for i, t := range m.Twins {
		in.Twins[i] = lswt.Twin{R: denseOrNil(t.R), Weight: t.Weight}
	}

	in.State = lswt.MagneticState{K: m.State.K, N: m.State.N, Tol: m.State.Tol}

	o := m.Options
	in.Options = lswt.Options{
		Hermit:              o.Hermit,
		FastMode:            o.FastMode,
		NeutronOutput:       o.NeutronOutput,
		FormFactor:          o.FormFactor,
		OmegaTol:            o.OmegaTol,
		Tol:                 o.Tol,
		SortMode:            lswt.SortMode(o.SortMode),
		Fallback:            lswt.FallbackStrategy(o.Fallback),
		ThreadCount:         o.ThreadCount,
		ChunkOverride:       o.ChunkOverride,
		NFormula:            o.NFormula,
		ReturnV:             o.ReturnV,
		ReturnHMatrix:       o.ReturnHMatrix,
		ReturnSabp:          o.ReturnSabp,
		MemoryBudgetBytes:   o.MemoryBudgetBytes,
		SpillThresholdBytes: o.SpillThresholdBytes,
	}
	return in
}

func readModel(path string) (jsonModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return jsonModel{}, errors.Wrap(err, "")
	}
	var m jsonModel
	if err := json.Unmarshal(b, &m); err != nil {
		return jsonModel{}, errors.Wrap(err, "")
	}
	return m, nil
}

func readHKL(path string) ([][3]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()

	r := csv.NewReader(f)
	var hkl [][3]float64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if len(record) < 3 {
			return nil, errors.Errorf("readHKL: row %v has fewer than 3 columns", record)
		}
		var q [3]float64
		for i := 0; i < 3; i++ {
			q[i], err = strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
		}
		hkl = append(hkl, q)
	}
	return hkl, nil
}

func writeOmega(dir string, omega [][]float64) error {
	f, err := os.Create(filepath.Join(dir, "omega.csv"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)
	for _, row := range omega {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return errors.Wrap(err, "")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "")
	}
	return errors.Wrap(f.Close(), "")
}

func writeSab(dir string, sab [][][][]complex128) error {
	f, err := os.Create(filepath.Join(dir, "sab.csv"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)
	for a := range sab {
		for b := range sab[a] {
			for mu := range sab[a][b] {
				for q, v := range sab[a][b][mu] {
					record := []string{
						strconv.Itoa(a), strconv.Itoa(b), strconv.Itoa(mu), strconv.Itoa(q),
						strconv.FormatFloat(real(v), 'g', -1, 64),
						strconv.FormatFloat(imag(v), 'g', -1, 64),
					}
					if err := w.Write(record); err != nil {
						f.Close()
						return errors.Wrap(err, "")
					}
				}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "")
	}
	return errors.Wrap(f.Close(), "")
}

func writeSperp(dir string, sperp [][]float64) error {
	f, err := os.Create(filepath.Join(dir, "sperp.csv"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)
	for mu := range sperp {
		record := make([]string, len(sperp[mu]))
		for q, v := range sperp[mu] {
			record[q] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return errors.Wrap(err, "")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "")
	}
	return errors.Wrap(f.Close(), "")
}

func writeWarnings(dir string, warnings []lswt.Warning) error {
	f, err := os.Create(filepath.Join(dir, "warnings.txt"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	for _, w := range warnings {
		if _, err := fmt.Fprintln(f, w.String()); err != nil {
			f.Close()
			return errors.Wrap(err, "")
		}
	}
	return errors.Wrap(f.Close(), "")
}

func run(dir string, model jsonModel, hkl [][3]float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	in := toInput(model)
	in.HKL = hkl

	result, err := lswt.Compute(in)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := writeOmega(dir, result.Omega); err != nil {
		return errors.Wrap(err, "")
	}
	if in.Options.NeutronOutput {
		if err := writeSperp(dir, result.Sperp); err != nil {
			return errors.Wrap(err, "")
		}
	}
	if err := writeSab(dir, result.Sab); err != nil {
		return errors.Wrap(err, "")
	}
	if err := writeWarnings(dir, result.Warnings); err != nil {
		return errors.Wrap(err, "")
	}

	return errors.Wrap(os.WriteFile(donePath, nil, 0644), "")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if *modelPath == "" || *qPath == "" {
		return errors.Errorf("mainWithErr: -model and -q are required")
	}

	model, err := readModel(*modelPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	hkl, err := readHKL(*qPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := run(*outDir, model, hkl); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("wrote results to %s", *outDir)
	return nil
}
