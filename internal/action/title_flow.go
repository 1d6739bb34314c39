package action

import (
	"fmt"
	"strconv"

	"github.com/rokbot/titlebot/internal/adb"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/title"
)

// NavigateTo returns the shared steps that bring the map to (x, y) and open the
// city there: world view, coordinate search, both fields typed, search pressed twice.
func NavigateTo(d *adb.Device, k *config.KingdomCfg, x, y int) []adb.Command {
	nav := k.Navigation
	return []adb.Command{
		d.Tap("Tapping World", nav.World.X, nav.World.Y),
		d.Tap("Tapping Magnifying Glass", nav.Search.X, nav.Search.Y),
		d.Tap("Tapping X Coordinate Field", nav.XField.X, nav.XField.Y),
		d.Text(fmt.Sprintf("Pasting X Coordinate: %d", x), strconv.Itoa(x)),
		d.Tap("Tapping Y Coordinate Field", nav.YField.X, nav.YField.Y),
		d.Tap("Tapping Y Coordinate Field Again", nav.YField.X, nav.YField.Y),
		d.Text(fmt.Sprintf("Pasting Y Coordinate: %d", y), strconv.Itoa(y)),
		d.Tap("Searching...", nav.SearchButton.X, nav.SearchButton.Y),
		d.Tap("Still searching...", nav.SearchButton.X, nav.SearchButton.Y),
	}
}

// GrantTitle returns the four taps that appoint t once the title dialog is open.
func GrantTitle(d *adb.Device, k *config.KingdomCfg, t title.Title) []adb.Command {
	btn := k.TitleButton(t)
	dlg := k.TitleDialog
	return []adb.Command{
		d.Tap(fmt.Sprintf("Selecting %s", t), btn.X, btn.Y),
		d.Tap("Tapping Appoint", dlg.Appoint.X, dlg.Appoint.Y),
		d.Tap("Confirming appointment", dlg.Confirm.X, dlg.Confirm.Y),
		d.Tap("Closing title dialog", dlg.Close.X, dlg.Close.Y),
	}
}

func ReturnHome(d *adb.Device, k *config.KingdomCfg) []adb.Command {
	return []adb.Command{d.Tap("Returning home", k.Navigation.Home.X, k.Navigation.Home.Y)}
}

// TapCheckpoint taps a target located by image recognition.
func TapCheckpoint(d *adb.Device, description string, x, y int) []adb.Command {
	return []adb.Command{d.Tap(description, x, y)}
}
