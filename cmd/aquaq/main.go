package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type client struct {
	baseURL    string
	httpClient *http.Client
}

type uploadResp struct {
	Success    bool   `json:"success"`
	AnalysisID string `json:"analysisId"`
	Message    string `json:"message"`
}

type statusResp struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

type resultResp struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"originalFilename"`
	AnalysisMarkdown string  `json:"analysisMarkdown"`
	ProcessingTime   float64 `json:"processingTime"`
	ReportURL        string  `json:"reportUrl"`
}

type availabilityResp struct {
	AnalysisID string  `json:"analysisId"`
	Exists     bool    `json:"exists"`
	Expired    bool    `json:"expired"`
	AgeMinutes float64 `json:"ageMinutes"`
	Downloaded bool    `json:"downloaded"`
	ExpiresIn  float64 `json:"expiresIn"`
}

type progressEvent struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

type profile struct {
	BaseURL string `yaml:"baseUrl"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func newClient(baseURL string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *client) get(path string) (int, []byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func newSpinner(suffix string) *spinner.Spinner {
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	spin.Suffix = " " + suffix
	if isTerminal() {
		spin.Start()
	}
	return spin
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func main() {
	baseURL := getenv("AQUAQ_BASE_URL", "http://localhost:2104")
	profileName := getenv("AQUAQ_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "aquaq",
		Short: "aquaQ CLI",
		Long:  "aquaQ CLI for uploading water test reports and tracking their analysis.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for aquaQ")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("AQUAQ_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !flags.Changed("profile") && profileName == "" && active != "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(uploadCmd(&baseURL, ui))
	root.AddCommand(statusCmd(&baseURL, ui))
	root.AddCommand(watchCmd(&baseURL, ui))
	root.AddCommand(resultCmd(&baseURL, ui))
	root.AddCommand(downloadCmd(&baseURL, ui))
	root.AddCommand(reportStatusCmd(&baseURL, ui))
	root.AddCommand(healthCmd(&baseURL, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL  string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if baseURL == "" {
				baseURL = prof.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:2104"
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}

			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for aquaQ")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func uploadCmd(baseURL *string, ui *ui) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:     "upload <file.pdf>",
		Short:   "Upload a water test report PDF",
		Example: "aquaq upload results/lab-2024-03.pdf --watch",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := w.CreateFormFile("pdf", filepath.Base(path))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			c := newClient(*baseURL)
			spin := newSpinner("Uploading PDF...")
			resp, err := c.httpClient.Post(c.baseURL+"/api/upload", w.FormDataContentType(), &buf)
			spin.Stop()
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= 300 {
				return fmt.Errorf("error (%d): %s", resp.StatusCode, string(body))
			}
			var out uploadResp
			if err := json.Unmarshal(body, &out); err != nil {
				fmt.Println(string(body))
				return nil
			}
			fmt.Printf("%s Analysis started: %s\n", ui.ok("[OK]"), out.AnalysisID)
			if watch {
				return watchAnalysis(c, out.AnalysisID, ui)
			}
			fmt.Printf("%s Follow progress with: aquaq watch %s\n", ui.dim("•"), out.AnalysisID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream progress until the analysis finishes")
	return cmd
}

func statusCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Get analysis status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			spin := newSpinner("Fetching status...")
			code, body, err := c.get("/api/status/" + url.PathEscape(args[0]))
			spin.Stop()
			if err != nil {
				return err
			}
			if code >= 300 {
				return fmt.Errorf("error (%d): %s", code, string(body))
			}
			var st statusResp
			if err := json.Unmarshal(body, &st); err != nil {
				fmt.Println(string(body))
				return nil
			}
			printStatus(st, ui)
			return nil
		},
	}
}

func watchCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Stream analysis progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchAnalysis(newClient(*baseURL), args[0], ui)
		},
	}
}

func watchAnalysis(c *client, id string, ui *ui) error {
	// The stream has no fixed duration; rely on server-side termination.
	streamClient := &http.Client{}
	resp, err := streamClient.Get(c.baseURL + "/api/stream/" + url.PathEscape(id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error (%d): %s", resp.StatusCode, string(body))
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWidth(24),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var lastMessage string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev progressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		_ = bar.Set(ev.Progress)
		if ev.Message != "" && ev.Message != lastMessage {
			lastMessage = ev.Message
			fmt.Printf("\n%s %s\n", ui.info("•"), ev.Message)
		}
		if ev.Step == "error" || ev.Status == "error" {
			_ = bar.Clear()
			return fmt.Errorf("analysis failed: %s", ev.Message)
		}
		if ev.Progress >= 100 {
			_ = bar.Finish()
			fmt.Printf("%s Analysis complete. Fetch it with: aquaq result %s\n", ui.ok("[OK]"), id)
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream ended before the analysis finished")
}

func resultCmd(baseURL *string, ui *ui) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Get a finished analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			spin := newSpinner("Fetching result...")
			code, body, err := c.get("/api/result/" + url.PathEscape(args[0]))
			spin.Stop()
			if err != nil {
				return err
			}
			if code == http.StatusGone {
				return errors.New("the report expired; upload the PDF again")
			}
			if code >= 300 {
				return fmt.Errorf("error (%d): %s", code, string(body))
			}
			if raw {
				fmt.Println(string(body))
				return nil
			}
			var res resultResp
			if err := json.Unmarshal(body, &res); err != nil {
				fmt.Println(string(body))
				return nil
			}
			fmt.Printf("%s %s\n", ui.title("aquaq"), res.ID)
			fmt.Printf("%s File: %s\n", ui.info("•"), res.OriginalFilename)
			fmt.Printf("%s Processing time: %.1fs\n", ui.info("•"), res.ProcessingTime)
			fmt.Println()
			fmt.Println(res.AnalysisMarkdown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw JSON response")
	return cmd
}

func downloadCmd(baseURL *string, ui *ui) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the HTML report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			c := newClient(*baseURL)
			resp, err := c.httpClient.Get(c.baseURL + "/api/download/" + url.PathEscape(id))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusGone {
				return errors.New("the report expired; upload the PDF again")
			}
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("error (%d): %s", resp.StatusCode, string(body))
			}

			if output == "" {
				output = id + ".html"
			}
			out, err := os.Create(output)
			if err != nil {
				return err
			}
			defer out.Close()

			bar := progressbar.DefaultBytes(resp.ContentLength, "Downloading")
			if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
				return err
			}
			fmt.Printf("%s Report saved to %s\n", ui.ok("[OK]"), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <id>.html)")
	return cmd
}

func reportStatusCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "report-status <id>",
		Short: "Check whether a report is still downloadable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			code, body, err := c.get("/api/report-status/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			if code >= 300 {
				return fmt.Errorf("error (%d): %s", code, string(body))
			}
			var av availabilityResp
			if err := json.Unmarshal(body, &av); err != nil {
				fmt.Println(string(body))
				return nil
			}
			switch {
			case !av.Exists:
				fmt.Printf("%s No report for %s\n", ui.warn("[WARN]"), av.AnalysisID)
			case av.Expired:
				fmt.Printf("%s Report for %s expired (%.1f min old)\n", ui.warn("[WARN]"), av.AnalysisID, av.AgeMinutes)
			default:
				fmt.Printf("%s Report for %s available, expires in %.1f min\n", ui.ok("[OK]"), av.AnalysisID, av.ExpiresIn)
				if av.Downloaded {
					fmt.Printf("%s Already downloaded once\n", ui.dim("•"))
				}
			}
			return nil
		},
	}
}

func healthCmd(baseURL *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			code, body, err := c.get("/api/health")
			if err != nil {
				return err
			}
			if code >= 300 {
				return fmt.Errorf("error (%d): %s", code, string(body))
			}
			var out map[string]any
			if err := json.Unmarshal(body, &out); err != nil {
				fmt.Println(string(body))
				return nil
			}
			fmt.Printf("%s %v (active: %v, reports: %v)\n", ui.ok("[OK]"), out["status"], out["activeSessions"], out["trackedReports"])
			return nil
		},
	}
}

func printStatus(st statusResp, ui *ui) {
	label := ui.info(st.Status)
	switch st.Status {
	case "completed":
		label = ui.ok(st.Status)
	case "error":
		label = ui.err(st.Status)
	}
	fmt.Printf("%s %s: %s (%d%%)\n", ui.title("aquaq"), st.ID, label, st.Progress)
	if st.Message != "" {
		fmt.Printf("%s %s\n", ui.info("•"), st.Message)
	}
	if st.Error != "" {
		fmt.Printf("%s %s\n", ui.err("•"), st.Error)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("aquaq")
	return fmt.Sprintf(`%s — CLI for aquaQ

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  aquaq init
  aquaq upload results/lab-2024-03.pdf --watch
  aquaq status analysis_a1b2c3d4e5f6
  aquaq download analysis_a1b2c3d4e5f6 -o report.html

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("AQUAQ_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".aquaq", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("AQUAQ_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
