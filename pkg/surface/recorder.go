package surface

// Instruction is one recorded draw call. Exactly one of the spec pointers
// is set based on Op.
type Instruction struct {
	Op    string `json:"op"`
	Slide int    `json:"slide"`
	Title string `json:"title,omitempty"`
	Rect  Rect   `json:"rect"`

	Shape *ShapeStyle `json:"shape,omitempty"`
	Table *TableSpec  `json:"table,omitempty"`
	Chart *ChartSpec  `json:"chart,omitempty"`
	Runs  []TextRun   `json:"runs,omitempty"`
	Text  *TextStyle  `json:"text,omitempty"`
	Image *ImageSpec  `json:"image,omitempty"`
}

// Recorder is an in-memory Surface capturing the ordered instruction log.
// It backs deterministic tests and dry-run renders. FailOp, when set,
// makes the matching draw call return FailErr, used to exercise
// per-component surface fault isolation.
type Recorder struct {
	bounds  Bounds
	slide   int
	ops     []Instruction
	FailOp  string
	FailErr error
}

// NewRecorder constructs a Recorder with the given bounds.
func NewRecorder(b Bounds) *Recorder {
	return &Recorder{bounds: b, slide: -1}
}

func (r *Recorder) Bounds() Bounds { return r.bounds }

func (r *Recorder) fail(op string) error {
	if r.FailOp == op && r.FailErr != nil {
		return r.FailErr
	}
	return nil
}

func (r *Recorder) BeginSlide(index int, title, layout string) error {
	r.slide = index
	r.ops = append(r.ops, Instruction{Op: "begin_slide", Slide: index, Title: title})
	return nil
}

func (r *Recorder) PlaceRect(rect Rect, style ShapeStyle) error {
	if err := r.fail("rect"); err != nil {
		return err
	}
	s := style
	r.ops = append(r.ops, Instruction{Op: "rect", Slide: r.slide, Rect: rect, Shape: &s})
	return nil
}

func (r *Recorder) DrawTable(rect Rect, spec TableSpec) error {
	if err := r.fail("table"); err != nil {
		return err
	}
	s := spec
	r.ops = append(r.ops, Instruction{Op: "table", Slide: r.slide, Rect: rect, Table: &s})
	return nil
}

func (r *Recorder) DrawChart(rect Rect, spec ChartSpec) error {
	if err := r.fail("chart"); err != nil {
		return err
	}
	s := spec
	r.ops = append(r.ops, Instruction{Op: "chart", Slide: r.slide, Rect: rect, Chart: &s})
	return nil
}

func (r *Recorder) DrawText(rect Rect, runs []TextRun, style TextStyle) error {
	if err := r.fail("text"); err != nil {
		return err
	}
	s := style
	r.ops = append(r.ops, Instruction{Op: "text", Slide: r.slide, Rect: rect, Runs: append([]TextRun(nil), runs...), Text: &s})
	return nil
}

func (r *Recorder) DrawImage(rect Rect, spec ImageSpec) error {
	if err := r.fail("image"); err != nil {
		return err
	}
	s := spec
	r.ops = append(r.ops, Instruction{Op: "image", Slide: r.slide, Rect: rect, Image: &s})
	return nil
}

// Log returns a copy of the recorded instruction list.
func (r *Recorder) Log() []Instruction {
	return append([]Instruction(nil), r.ops...)
}

// OpsFor returns the instructions recorded for one slide index,
// excluding the begin_slide marker.
func (r *Recorder) OpsFor(slide int) []Instruction {
	var out []Instruction
	for _, in := range r.ops {
		if in.Slide == slide && in.Op != "begin_slide" {
			out = append(out, in)
		}
	}
	return out
}
