package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	cp "github.com/otiai10/copy"
	"github.com/rokbot/titlebot/internal/title"
	"gopkg.in/yaml.v3"
)

var (
	cfgMux   sync.RWMutex
	Titlebot *TitlebotCfg
	Kingdoms map[string]*KingdomCfg
	Version  = "dev"

	// Directory holding titlebot.yaml and one folder per kingdom.
	Dir = "config"
)

const (
	TitleActionAbort    = "abort"
	TitleActionContinue = "continue"

	templateFolder = "template"
)

var kingdomIDPattern = regexp.MustCompile(`^\d{4}$`)

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

type TitlebotCfg struct {
	Debug struct {
		Log bool `yaml:"log"`
	} `yaml:"debug"`
	LogSaveDirectory string `yaml:"logSaveDirectory"`
	Discord          struct {
		Enabled   bool     `yaml:"enabled"`
		Token     string   `yaml:"token"`
		AppID     string   `yaml:"appId"`
		GuildID   string   `yaml:"guildId"`
		ChannelID string   `yaml:"channelId"`
		BotAdmins []string `yaml:"botAdmins"`
		AckEmoji  string   `yaml:"ackEmoji"`
		// EventWebhookURL, when set, receives lifecycle events instead of ChannelID.
		EventWebhookURL string `yaml:"eventWebhookUrl"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`
	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`
	Server struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	ADB struct {
		Path string `yaml:"path"`
	} `yaml:"adb"`
	Recognition struct {
		Interpreter      string `yaml:"interpreter"`
		TitleScript      string `yaml:"titleScript"`
		ConnectionScript string `yaml:"connectionScript"`
		// HomeScript prints the map button position when the city view is shown.
		HomeScript    string `yaml:"homeScript"`
		ScreenshotDir string `yaml:"screenshotDir"`
	} `yaml:"recognition"`
	Automation struct {
		StepDelayMs        int    `yaml:"stepDelayMs"`
		SettleDelayMs      int    `yaml:"settleDelayMs"`
		TitleActionFailure string `yaml:"titleActionFailure"` // "abort" (default) or "continue"
	} `yaml:"automation"`
	Completion struct {
		TimeoutSeconds int            `yaml:"timeoutSeconds"`
		Durations      map[string]int `yaml:"durations"` // seconds, keyed by title name
	} `yaml:"completion"`
	ConnectionMonitor struct {
		Enabled              bool `yaml:"enabled"`
		Threshold            int  `yaml:"threshold"`
		WindowSeconds        int  `yaml:"windowSeconds"`
		RelaunchDelaySeconds int  `yaml:"relaunchDelaySeconds"`
	} `yaml:"connectionMonitor"`
}

// KingdomCfg describes the emulator serving one kingdom and where things are on its screen.
type KingdomCfg struct {
	Kingdom string `yaml:"-"`
	Device  struct {
		Serial     string `yaml:"serial"`
		AppPackage string `yaml:"appPackage"`
	} `yaml:"device"`
	Navigation struct {
		World        Point `yaml:"world"`
		Search       Point `yaml:"search"`
		XField       Point `yaml:"xField"`
		YField       Point `yaml:"yField"`
		SearchButton Point `yaml:"searchButton"`
		Home         Point `yaml:"home"`
	} `yaml:"navigation"`
	TitleDialog struct {
		Titles  map[string]Point `yaml:"titles"`
		Appoint Point            `yaml:"appoint"`
		Confirm Point            `yaml:"confirm"`
		Close   Point            `yaml:"close"`
	} `yaml:"titleDialog"`
}

// TitleButton returns the position of the title's icon inside the title dialog.
func (k *KingdomCfg) TitleButton(t title.Title) Point {
	if p, found := k.TitleDialog.Titles[string(t)]; found && !p.IsZero() {
		return p
	}
	return defaultTitleButtons[t]
}

var defaultTitleButtons = map[title.Title]Point{
	title.Justice:   {X: 545, Y: 565},
	title.Duke:      {X: 815, Y: 565},
	title.Architect: {X: 1080, Y: 565},
	title.Scientist: {X: 1350, Y: 565},
}

func (c *TitlebotCfg) StepDelay() time.Duration {
	return time.Duration(c.Automation.StepDelayMs) * time.Millisecond
}

func (c *TitlebotCfg) SettleDelay() time.Duration {
	return time.Duration(c.Automation.SettleDelayMs) * time.Millisecond
}

func (c *TitlebotCfg) CompletionTimeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSeconds) * time.Second
}

// TitleDuration is the configured completion window for a title, falling back to the
// title's own default.
func (c *TitlebotCfg) TitleDuration(t title.Title) time.Duration {
	if secs, found := c.Completion.Durations[string(t)]; found && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return t.DefaultDuration()
}

func (c *TitlebotCfg) IsBotAdmin(userID string) bool {
	for _, id := range c.Discord.BotAdmins {
		if id == userID {
			return true
		}
	}
	return false
}

func ValidKingdomID(id string) bool {
	return kingdomIDPattern.MatchString(id)
}

func GetKingdom(id string) (*KingdomCfg, bool) {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	k, exists := Kingdoms[id]
	return k, exists
}

// GetKingdoms returns the loaded kingdom ids, sorted.
func GetKingdoms() []string {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	ids := make([]string, 0, len(Kingdoms))
	for id := range Kingdoms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func Load() error {
	cfgMux.Lock()
	defer cfgMux.Unlock()

	cfg, kingdoms, err := read(Dir)
	if err != nil {
		return err
	}
	Titlebot = cfg
	Kingdoms = kingdoms

	return nil
}

func read(dir string) (*TitlebotCfg, map[string]*KingdomCfg, error) {
	mainPath := filepath.Join(dir, "titlebot.yaml")
	r, err := os.Open(mainPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading titlebot.yaml: %w", err)
	}
	defer r.Close()

	cfg := &TitlebotCfg{}
	if err = yaml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, nil, fmt.Errorf("error reading config %s: %w", mainPath, err)
	}
	applyDefaults(cfg)
	sanitizeDiscordConfig(cfg)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading config directory %s: %w", dir, err)
	}

	kingdoms := make(map[string]*KingdomCfg)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == templateFolder {
			continue
		}
		if !ValidKingdomID(entry.Name()) {
			return nil, nil, fmt.Errorf("config folder %q is not a 4-digit kingdom number", entry.Name())
		}

		k, err := readKingdom(filepath.Join(dir, entry.Name(), "config.yaml"))
		if err != nil {
			return nil, nil, err
		}
		k.Kingdom = entry.Name()
		if err := k.Validate(); err != nil {
			return nil, nil, fmt.Errorf("kingdom %s: %w", k.Kingdom, err)
		}
		kingdoms[k.Kingdom] = k
	}

	return cfg, kingdoms, nil
}

func readKingdom(path string) (*KingdomCfg, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config.yaml: %w", err)
	}
	defer r.Close()

	k := &KingdomCfg{}
	if err = yaml.NewDecoder(r).Decode(k); err != nil {
		return nil, fmt.Errorf("error reading %s kingdom config: %w", path, err)
	}
	applyKingdomDefaults(k)

	return k, nil
}

func applyDefaults(cfg *TitlebotCfg) {
	if cfg.Automation.StepDelayMs <= 0 {
		cfg.Automation.StepDelayMs = 1000
	}
	if cfg.Automation.SettleDelayMs <= 0 {
		cfg.Automation.SettleDelayMs = 2000
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Automation.TitleActionFailure)) {
	case TitleActionContinue:
		cfg.Automation.TitleActionFailure = TitleActionContinue
	default:
		cfg.Automation.TitleActionFailure = TitleActionAbort
	}
	if cfg.Completion.TimeoutSeconds <= 0 {
		cfg.Completion.TimeoutSeconds = 300
	}
	if cfg.Discord.AckEmoji == "" {
		cfg.Discord.AckEmoji = "✅"
	}
	if cfg.ADB.Path == "" {
		cfg.ADB.Path = "adb"
	}
	if cfg.Recognition.Interpreter == "" {
		cfg.Recognition.Interpreter = "python"
	}
	if cfg.Recognition.TitleScript == "" {
		cfg.Recognition.TitleScript = "check_title.py"
	}
	if cfg.Recognition.ConnectionScript == "" {
		cfg.Recognition.ConnectionScript = "check_connection_loss.py"
	}
	if cfg.Recognition.HomeScript == "" {
		cfg.Recognition.HomeScript = "check_home.py"
	}
	if cfg.Recognition.ScreenshotDir == "" {
		cfg.Recognition.ScreenshotDir = "temp"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "titlebot.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8087
	}
	if cfg.ConnectionMonitor.Threshold <= 0 {
		cfg.ConnectionMonitor.Threshold = 2
	}
	if cfg.ConnectionMonitor.WindowSeconds <= 0 {
		cfg.ConnectionMonitor.WindowSeconds = 600
	}
	if cfg.ConnectionMonitor.RelaunchDelaySeconds <= 0 {
		cfg.ConnectionMonitor.RelaunchDelaySeconds = 5
	}
}

func applyKingdomDefaults(k *KingdomCfg) {
	if k.Device.AppPackage == "" {
		k.Device.AppPackage = "com.lilithgame.roc.gp"
	}
	nav := &k.Navigation
	setDefault(&nav.World, Point{X: 89, Y: 978})
	setDefault(&nav.Search, Point{X: 660, Y: 28})
	setDefault(&nav.XField, Point{X: 962, Y: 215})
	setDefault(&nav.YField, Point{X: 1169, Y: 215})
	setDefault(&nav.SearchButton, Point{X: 1331, Y: 212})
	setDefault(&nav.Home, Point{X: 89, Y: 978})

	dlg := &k.TitleDialog
	setDefault(&dlg.Appoint, Point{X: 960, Y: 835})
	setDefault(&dlg.Confirm, Point{X: 1105, Y: 700})
	setDefault(&dlg.Close, Point{X: 1640, Y: 120})
}

func setDefault(p *Point, def Point) {
	if p.IsZero() {
		*p = def
	}
}

func (k *KingdomCfg) Validate() error {
	if strings.TrimSpace(k.Device.Serial) == "" {
		return errors.New("device serial is required")
	}
	for name := range k.TitleDialog.Titles {
		if _, err := title.Parse(name); err != nil {
			return err
		}
	}
	return nil
}

// Discord is unusable without a token and a home channel, turn it off rather than
// failing later on connect.
func sanitizeDiscordConfig(cfg *TitlebotCfg) {
	if !cfg.Discord.Enabled {
		return
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" || strings.TrimSpace(cfg.Discord.ChannelID) == "" {
		cfg.Discord.Enabled = false
	}
}

// CreateFromTemplate copies config/template into a new kingdom folder, sets the
// device serial when one is given and reloads.
func CreateFromTemplate(kingdom, serial string) error {
	if !ValidKingdomID(kingdom) {
		return fmt.Errorf("kingdom %q is not a 4-digit number", kingdom)
	}

	target := filepath.Join(Dir, kingdom)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		return errors.New("configuration for that kingdom already exists")
	}

	if err := cp.Copy(filepath.Join(Dir, templateFolder), target); err != nil {
		return fmt.Errorf("error copying template: %w", err)
	}

	if serial != "" {
		k, err := readKingdom(filepath.Join(target, "config.yaml"))
		if err != nil {
			return err
		}
		k.Kingdom = kingdom
		k.Device.Serial = serial
		return SaveKingdomConfig(k)
	}

	return Load()
}

func SaveKingdomConfig(k *KingdomCfg) error {
	if err := k.Validate(); err != nil {
		return err
	}
	text, err := yaml.Marshal(k)
	if err != nil {
		return fmt.Errorf("error parsing kingdom config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(Dir, k.Kingdom, "config.yaml"), text, 0644); err != nil {
		return fmt.Errorf("error writing kingdom config: %w", err)
	}

	return Load()
}
