package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"watchpoint/internal/domain"
	"watchpoint/internal/format"
	"watchpoint/internal/preview"
	"watchpoint/internal/screen"
)

// Callback data prefixes of the inline buttons. Pause buttons carry the
// screen they were rendered by so the reply updates the same view.
const (
	cbPause          = "pause"
	cbDashboardPause = "dpause"
	cbDelete         = "del"
	cbDeleteConfirm  = "delok"
	cbFeedback       = "fb"
)

const helpText = `Commands:
/login <access_token> - sign in
/watches - your watches and recent changes
/watch <id> - one watch and its changes
/new <url> [interval_seconds] [selector] - start watching a page
/preview <url> [selector] - see what a selector matches
/logout - sign out`

const loginPrompt = "You are not signed in. Send /login <access_token> to continue."

func callbackData(parts ...string) string {
	return strings.Join(parts, ":")
}

// parseCallback splits callback data into its action and arguments.
func parseCallback(data string) (action string, args []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

// commandArgs returns the whitespace separated words after the command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

// parseNewArgs builds the New Watch form from /new arguments. The interval is
// optional; anything after the URL that is not a number starts the selector.
func parseNewArgs(args []string) (screen.Form, error) {
	form := screen.NewForm()
	if len(args) == 0 {
		return form, domain.NewValidationError("target_url", "URL is required")
	}
	form.TargetURL = args[0]
	rest := args[1:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			form.CheckIntervalSeconds = n
			rest = rest[1:]
		}
	}
	form.Selector = strings.Join(rest, " ")
	return form, nil
}

func watchStatus(w domain.Watch) string {
	if w.IsActive {
		return "active"
	}
	return "paused"
}

func renderUser(u *domain.User) string {
	if u == nil {
		return ""
	}
	name := u.Email
	if u.FullName != nil && *u.FullName != "" {
		name = *u.FullName
	}
	return fmt.Sprintf("Signed in as %s (%s plan)", name, u.PlanTier)
}

// renderDashboard formats the dashboard as message text plus one row of
// buttons per watch.
func renderDashboard(v screen.DashboardView, now time.Time) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	if line := renderUser(v.User); line != "" {
		sb.WriteString(line + "\n\n")
	}
	if v.Error != "" {
		sb.WriteString("⚠ " + v.Error + "\n\n")
	}

	if len(v.Watches) == 0 {
		sb.WriteString("No watches yet. Create one with /new <url>.\n")
	} else {
		sb.WriteString("Watches:\n")
	}
	kb := &models.InlineKeyboardMarkup{}
	for _, w := range v.Watches {
		fmt.Fprintf(&sb, "• %s [%s]\n  %s, every %s", w.DisplayName(), watchStatus(w),
			format.TruncateURL(w.TargetURL, format.DefaultURLLength), format.Interval(w.CheckIntervalSeconds))
		if w.LastCheckedAt != nil {
			sb.WriteString(", checked " + format.RelativeTime(*w.LastCheckedAt, now))
		}
		sb.WriteString("\n  /watch " + w.ID + "\n")

		toggle := "Pause"
		if !w.IsActive {
			toggle = "Resume"
		}
		if v.Pending[w.ID] {
			toggle += " …"
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
			{Text: toggle + " " + w.DisplayName(), CallbackData: callbackData(cbDashboardPause, w.ID)},
			{Text: "Delete", CallbackData: callbackData(cbDelete, w.ID)},
		})
	}

	if len(v.Changes) > 0 {
		sb.WriteString("\nRecent changes:\n")
		for _, c := range v.Changes {
			fmt.Fprintf(&sb, "• %s: %s (%s)\n", c.Watch.Label(), c.ChangeSummary, format.RelativeTime(c.DetectedAt, now))
		}
	}
	if len(kb.InlineKeyboard) == 0 {
		return sb.String(), nil
	}
	return sb.String(), kb
}

// renderDetail formats one watch with its changes. Changes still open for
// feedback get a row of feedback buttons.
func renderDetail(v screen.DetailView, now time.Time) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	if v.Error != "" {
		sb.WriteString("⚠ " + v.Error + "\n\n")
	}
	if v.Watch == nil {
		if v.Error == "" {
			sb.WriteString("Watch not loaded.")
		}
		return sb.String(), nil
	}

	w := v.Watch
	fmt.Fprintf(&sb, "%s [%s]\n%s\nChecked every %s\n", w.DisplayName(), watchStatus(*w), w.TargetURL, format.Interval(w.CheckIntervalSeconds))
	if w.Selector != nil && *w.Selector != "" {
		sb.WriteString("Selector: " + *w.Selector + "\n")
	}
	if w.LastCheckedAt != nil {
		sb.WriteString("Last checked " + format.RelativeTime(*w.LastCheckedAt, now) + "\n")
	}
	if w.ShowNextCheck() {
		sb.WriteString("Next check " + w.NextCheckAt.In(now.Location()).Format("1/2/2006 15:04") + "\n")
	}

	kb := &models.InlineKeyboardMarkup{}
	toggle := "Pause"
	if !w.IsActive {
		toggle = "Resume"
	}
	if v.TogglePending {
		toggle += " …"
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
		{Text: toggle, CallbackData: callbackData(cbPause, w.ID)},
		{Text: "Delete", CallbackData: callbackData(cbDelete, w.ID)},
	})

	if len(v.Changes) == 0 {
		sb.WriteString("\nNo changes detected yet.")
		return sb.String(), kb
	}
	sb.WriteString("\nChanges:\n")
	for i, c := range v.Changes {
		fmt.Fprintf(&sb, "%d. %s (%s)", i+1, c.ChangeSummary, format.RelativeTime(c.DetectedAt, now))
		st := v.Feedback[c.ID]
		switch {
		case st.Saved && st.Value != nil:
			sb.WriteString(" - marked " + st.Value.String())
		case st.Saved:
			sb.WriteString(" - feedback saved")
		case st.Saving:
			sb.WriteString(" - saving…")
		default:
			row := make([]models.InlineKeyboardButton, 0, len(domain.FeedbackValues))
			for _, fb := range domain.FeedbackValues {
				row = append(row, models.InlineKeyboardButton{
					Text:         fmt.Sprintf("#%d %s", i+1, fb),
					CallbackData: callbackData(cbFeedback, w.ID, c.ID, fb.String()),
				})
			}
			kb.InlineKeyboard = append(kb.InlineKeyboard, row)
		}
		sb.WriteString("\n")
	}
	return sb.String(), kb
}

func deleteConfirmKeyboard(watchID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Yes, delete", CallbackData: callbackData(cbDeleteConfirm, watchID)},
		}},
	}
}

func renderPreview(res preview.Result) string {
	var sb strings.Builder
	title := res.Title
	if title == "" {
		title = format.TruncateURL(res.URL, format.DefaultURLLength)
	}
	sb.WriteString("Preview of " + title + "\n")
	if res.Selector != "" {
		fmt.Fprintf(&sb, "Selector %s matched %d element(s)\n", res.Selector, res.Matches)
	}
	if res.Excerpt != "" {
		sb.WriteString("\n" + res.Excerpt)
	}
	return sb.String()
}
