package transcript

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/spec-kit/ticket-archiver/internal/domain"
)

// Page geometry in millimeters (A4 portrait).
const (
	pageLeftMargin = 15
	pageTopMargin  = 20
	pageBottomBand = 50 // page-break threshold, measured from the bottom edge
	imageMaxHeight = 100
	wrapColumns    = 80

	titleFontSize  = 16
	headerFontSize = 12
	issueFontSize  = 11
	bodyFontSize   = 10
)

// mmPerPixel converts source image pixels to millimeters at 96dpi.
const mmPerPixel = 25.4 / 96

// Document is the finalized transcript artifact.
type Document struct {
	Path  string
	Pages int
}

// RenderInput carries everything the renderer consumes. Rendering is purely
// functional over these values; only the output filename embeds a timestamp.
type RenderInput struct {
	TicketID      int64
	RequesterName string
	IssueText     string
	Messages      []domain.TranscriptMessage
	Attachments   []domain.ArchivedAttachment
}

// Renderer produces paginated PDF transcripts.
type Renderer struct {
	dir string
	now func() time.Time
}

// NewRenderer writes documents into dir, named from the ticket id and the
// generation timestamp.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir, now: time.Now}
}

// Render lays out the transcript and returns the sealed document. A failure
// to finalize the output is fatal; a per-attachment failure degrades to an
// inline notice.
func (r *Renderer) Render(in RenderInput) (*Document, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	doc := &layout{
		pdf:      pdf,
		y:        pageTopMargin,
		breakY:   pageH - pageBottomBand,
		contentW: pageW - 2*pageLeftMargin,
	}

	doc.setFont(titleFontSize)
	title := fmt.Sprintf("Ticket #%d", in.TicketID)
	pdf.Text((pageW-pdf.GetStringWidth(title))/2, doc.y, title)
	doc.y += 10

	doc.setFont(headerFontSize)
	doc.line(pageLeftMargin, "Requester: "+in.RequesterName, 7)
	doc.line(pageLeftMargin, "Issue description:", 7)

	doc.setFont(issueFontSize)
	for _, raw := range strings.Split(in.IssueText, "\n") {
		for _, part := range wrapText(raw, wrapColumns) {
			doc.line(pageLeftMargin, part, 5)
		}
	}
	doc.y += 10

	doc.setFont(headerFontSize)
	doc.line(pageLeftMargin, "Conversation:", 7)

	doc.setFont(bodyFontSize)
	for _, msg := range in.Messages {
		doc.line(pageLeftMargin, msg.Author+":", 5)
		for _, part := range wrapText(msg.Content, wrapColumns) {
			doc.line(pageLeftMargin+10, part, 5)
		}
		doc.y += 3
	}

	if len(in.Attachments) > 0 {
		doc.setFont(headerFontSize)
		doc.line(pageLeftMargin, "Attachments:", 10)

		doc.setFont(bodyFontSize)
		for _, att := range in.Attachments {
			switch att.Class {
			case domain.ContentClassImage:
				drawImage(doc, att)
			case domain.ContentClassVideo:
				doc.linkedLine("Video: "+att.URL, att.URL)
				doc.line(pageLeftMargin+10, fmt.Sprintf("(archived locally: %s)", filepath.Base(att.Path)), 10)
			default:
				doc.linkedLine("Attachment: "+att.URL, att.URL)
				doc.y += 5
			}
		}
	}

	path := filepath.Join(r.dir, fmt.Sprintf("ticket_%d_%s.pdf", in.TicketID, r.now().Format("20060102150405")))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return nil, fmt.Errorf("finalize transcript document: %w", err)
	}
	return &Document{Path: path, Pages: pdf.PageCount()}, nil
}

// layout tracks the vertical cursor and the active font across page breaks.
type layout struct {
	pdf      *fpdf.Fpdf
	y        float64
	breakY   float64
	contentW float64
	fontSize float64
}

func (l *layout) setFont(size float64) {
	l.fontSize = size
	l.pdf.SetFont("Helvetica", "", size)
}

// breakIfNeeded starts a new page once the cursor crosses the bottom band.
// Font state does not persist across a page break and is re-asserted.
func (l *layout) breakIfNeeded() {
	if l.y > l.breakY {
		l.pdf.AddPage()
		l.y = pageTopMargin
		l.setFont(l.fontSize)
	}
}

func (l *layout) line(x float64, text string, advance float64) {
	l.breakIfNeeded()
	l.pdf.Text(x, l.y, text)
	l.y += advance
}

// linkedLine wraps text and overlays a clickable region on the segment that
// carries the whole URL. A URL split across wrapped lines stays plain text.
func (l *layout) linkedLine(text, url string) {
	for _, part := range wrapText(text, wrapColumns) {
		l.breakIfNeeded()
		l.pdf.Text(pageLeftMargin, l.y, part)
		if idx := strings.Index(part, url); idx >= 0 {
			px := pageLeftMargin + l.pdf.GetStringWidth(part[:idx])
			pw := l.pdf.GetStringWidth(url)
			l.pdf.LinkString(px, l.y-4, pw, 5, url)
		}
		l.y += 5
	}
}

// drawImage embeds an archived image downscaled to fit the content width and
// the height cap, preserving aspect ratio. Any decode failure degrades to a
// one-line notice naming the file.
func drawImage(doc *layout, att domain.ArchivedAttachment) {
	img, err := loadImage(att.Path)
	if err != nil {
		doc.line(pageLeftMargin, "failed to embed image: "+filepath.Base(att.Path), 7)
		return
	}

	// Re-encode the decoded frame so the document only ever embeds
	// validated pixel data; GIFs contribute their first frame.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		doc.line(pageLeftMargin, "failed to embed image: "+filepath.Base(att.Path), 7)
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.pdf.RegisterImageOptionsReader(att.Path, opts, &buf)

	bounds := img.Bounds()
	w := float64(bounds.Dx()) * mmPerPixel
	h := float64(bounds.Dy()) * mmPerPixel
	scale := 1.0
	if w > doc.contentW {
		scale = doc.contentW / w
	}
	if s := imageMaxHeight / h; s < scale {
		scale = s
	}
	w *= scale
	h *= scale

	if doc.y+h > doc.breakY {
		doc.pdf.AddPage()
		doc.y = pageTopMargin
		doc.setFont(doc.fontSize)
	}
	doc.pdf.ImageOptions(att.Path, pageLeftMargin, doc.y, w, h, false, opts, 0, "")
	doc.y += h + 10
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// wrapText breaks s into runs of at most width runes. Wrapping is purely
// width-based. Empty input yields no lines.
func wrapText(s string, width int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	var out []string
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	return append(out, string(runes))
}
