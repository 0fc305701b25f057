// Package seed loads borrower intake files from a directory and creates
// loans for any borrower not already tracked.
package seed

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
)

var (
	amountPattern = regexp.MustCompile(`\$?([\d,]+)`)
	datePattern   = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)

	idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("loantrack/seed"))
	titleCaser  = cases.Title(language.English)
)

// Importer scans a borrowers directory for markdown intake files.
type Importer struct {
	svc    *app.Service
	logger *charmLog.Logger
}

// NewImporter constructs an importer over the pipeline service.
func NewImporter(svc *app.Service, logger *charmLog.Logger) *Importer {
	if logger == nil {
		logger = charmLog.Default()
	}
	return &Importer{svc: svc, logger: logger}
}

// Result reports what one import run did.
type Result struct {
	Created []string
	Skipped []string
}

// Run reads every *.md file directly under dir and creates a loan per
// borrower not already present, matching by case-insensitive name. Files
// resolving outside dir are skipped. Loan ids derive from the file name so
// repeat runs are stable.
func (im *Importer) Run(ctx context.Context, dir string) (Result, error) {
	var result Result
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result, nil
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return result, err
	}
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}
	if resolvedBase, err := filepath.EvalSymlinks(base); err == nil {
		base = resolvedBase
	}

	loans, err := im.svc.ListLoans(ctx)
	if err != nil {
		return result, err
	}
	existing := map[string]struct{}{}
	for _, loan := range loans {
		existing[strings.ToLower(loan.Borrower)] = struct{}{}
	}

	paths, err := filepath.Glob(filepath.Join(base, "*.md"))
	if err != nil {
		return result, err
	}
	for _, path := range paths {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			im.logger.Warn("skipping unreadable seed file", "path", path, "err", err)
			continue
		}
		if !strings.HasPrefix(resolved, base+string(os.PathSeparator)) {
			im.logger.Warn("skipping file outside borrowers dir", "path", path)
			continue
		}
		name := borrowerName(path)
		if _, ok := existing[strings.ToLower(name)]; ok {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		text, err := os.ReadFile(path)
		if err != nil {
			im.logger.Warn("skipping unreadable seed file", "path", path, "err", err)
			continue
		}

		intake := parseIntake(string(text))
		loan, err := im.svc.CreateLoan(ctx, domain.LoanInput{
			ID:              uuid.NewSHA1(idNamespace, []byte(filepath.Base(path))).String(),
			Borrower:        name,
			PropertyAddress: intake.address,
			Amount:          intake.amount,
			Program:         intake.program,
		})
		if err != nil {
			im.logger.Warn("skipping seed file", "path", path, "err", err)
			continue
		}
		if intake.closing != nil {
			if _, err := im.svc.SetLoanDeadline(ctx, loan.ID, &domain.Deadline{
				DueDate: *intake.closing,
				Note:    "closing date",
			}); err != nil {
				return result, err
			}
		}
		existing[strings.ToLower(name)] = struct{}{}
		result.Created = append(result.Created, name)
	}
	return result, nil
}

type intakeFields struct {
	amount  int64
	address string
	program string
	closing *time.Time
}

// parseIntake pulls loan details out of free-form intake notes line by line.
func parseIntake(text string) intakeFields {
	var fields intakeFields
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "loan amount") || strings.Contains(lower, "purchase price") {
			if m := amountPattern.FindStringSubmatch(line); m != nil {
				if amount, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
					fields.amount = amount
				}
			}
		}
		if strings.Contains(lower, "property") || strings.Contains(lower, "address") {
			if _, value, ok := strings.Cut(line, ":"); ok {
				if value = strings.TrimSpace(value); value != "" {
					fields.address = value
				}
			}
		}
		if strings.Contains(lower, "fha") {
			fields.program = string(domain.ProgramFHA)
		}
		if strings.Contains(lower, "closing") && strings.Contains(lower, "date") {
			if raw := datePattern.FindString(line); raw != "" {
				if closing, err := parseIntakeDate(raw); err == nil {
					fields.closing = &closing
				}
			}
		}
	}
	return fields
}

func parseIntakeDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{"1/2/2006", "1/2/06"} {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// borrowerName derives the borrower's display name from the file name.
func borrowerName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")
	return titleCaser.String(strings.TrimSpace(stem))
}
