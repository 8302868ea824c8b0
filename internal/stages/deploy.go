package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mlship/mlship/internal/credentials"
	"github.com/mlship/mlship/internal/hub"
	"github.com/mlship/mlship/internal/modelcard"
	"github.com/mlship/mlship/internal/models"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/storage"
	"github.com/mlship/mlship/internal/utils"
)

// SyncPair maps a local directory onto a destination folder in the space.
type SyncPair struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// DeployArgs holds the options for the deploy stage.
type DeployArgs struct {
	// Space is the hub space to deploy to, as owner/name. Required.
	Space string `mapstructure:"space"`

	// SDK is the space runtime, used when the space has to be created.
	SDK string `mapstructure:"sdk"`

	// Revision is the destination branch on the hub.
	Revision string `mapstructure:"revision"`

	// Message overrides the per-folder commit messages.
	Message string `mapstructure:"message"`

	// Workers caps the concurrent file readers per folder upload.
	Workers int `mapstructure:"workers"`

	// Sync lists the local-dir to space-folder pairs to upload. Defaults
	// to the app at the root, the model under Model and the results under
	// Metrics.
	Sync []SyncPair `mapstructure:"sync"`

	// EnsureCard writes a starter README card when the space has none. On
	// unless disabled.
	EnsureCard *bool `mapstructure:"ensure_card"`

	// Archive additionally mirrors the results and model dirs to an
	// object store URL (s3://, azblob:// or a local path).
	Archive string `mapstructure:"archive"`
}

type deployStage struct {
	space      string
	sdk        string
	revision   string
	message    string
	workers    int
	sync       []SyncPair
	ensureCard bool
	archive    string

	// hubBaseURL overrides the hub endpoint, for tests.
	hubBaseURL string
}

// NewDeployStage creates a stage that publishes the app, model and results
// to a hub space.
func NewDeployStage(args DeployArgs) (*deployStage, error) {
	if args.Space == "" {
		return nil, fmt.Errorf("deploy needs a space as owner/name")
	}
	if !strings.Contains(args.Space, "/") {
		return nil, fmt.Errorf("deploy space must be owner/name, got %q", args.Space)
	}
	if args.SDK == "" {
		args.SDK = modelcard.DefaultSDK
	}
	if args.Workers <= 0 {
		args.Workers = pipeline.DefaultDeployWorkers
	}
	ensureCard := true
	if args.EnsureCard != nil {
		ensureCard = *args.EnsureCard
	}
	return &deployStage{
		space:      args.Space,
		sdk:        args.SDK,
		revision:   args.Revision,
		message:    args.Message,
		workers:    args.Workers,
		sync:       args.Sync,
		ensureCard: ensureCard,
		archive:    args.Archive,
	}, nil
}

func (s *deployStage) Name() string {
	return pipeline.StageDeploy
}

func (s *deployStage) Run(ctx context.Context, sc *Context) (*models.StageResult, error) {
	return measureStage(func() (*models.StageResult, error) {
		token := sc.Creds.HubAccessToken()
		if token == "" {
			return failure(pipeline.StageDeploy, "deploying requires the HF or HF_TOKEN environment variable"), nil
		}

		client := hub.New(s.hubBaseURL, token)
		account, err := client.WhoAmI(ctx)
		if err != nil {
			return failure(pipeline.StageDeploy, err.Error()), nil
		}
		slog.Info("logged in to hub", "account", account.Name)

		repo := hub.Repo{Type: hub.TypeSpace, ID: s.space}
		created, err := client.EnsureRepo(ctx, repo, s.sdk)
		if err != nil {
			return failure(pipeline.StageDeploy, err.Error()), nil
		}
		if created {
			slog.Info("created space", "space", s.space)
		}

		if s.ensureCard {
			if err := s.writeStarterCard(ctx, sc, client, repo); err != nil {
				return failure(pipeline.StageDeploy, err.Error()), nil
			}
		}

		pairs := s.sync
		if len(pairs) == 0 {
			pairs = defaultSyncPairs(sc.Spec)
		}

		total := 0
		for _, pair := range pairs {
			localDir := utils.ResolvePath(pair.From, sc.Spec.Dir)
			if _, err := os.Stat(localDir); err != nil {
				slog.Warn("skipping sync folder, not found", "dir", pair.From)
				continue
			}
			message := s.message
			if message == "" {
				message = "Sync " + pair.From
			}
			n, err := client.UploadFolder(ctx, repo, localDir, pair.To, hub.UploadOptions{
				Revision: s.revision,
				Message:  message,
				Workers:  s.workers,
				Progress: sc.Spec.StreamOutput(),
			})
			if err != nil {
				return failure(pipeline.StageDeploy, fmt.Sprintf("uploading %s: %v", pair.From, err)), nil
			}
			total += n
		}

		if s.archive != "" {
			if err := ArchiveArtifacts(ctx, sc.Spec, sc.Creds, s.archive); err != nil {
				return failure(pipeline.StageDeploy, fmt.Sprintf("archiving artifacts: %v", err)), nil
			}
		}

		return &models.StageResult{
			Stage:  pipeline.StageDeploy,
			Status: models.StatusPassed,
			Output: fmt.Sprintf("uploaded %d files to %s", total, s.space),
		}, nil
	})
}

// writeStarterCard commits a default README card when the space has none,
// so a freshly created space boots instead of showing a configuration
// error.
func (s *deployStage) writeStarterCard(ctx context.Context, sc *Context, client *hub.Client, repo hub.Repo) error {
	revision := s.revision
	if revision == "" {
		revision = hub.DefaultRevision
	}
	exists, err := client.FileExists(ctx, repo, revision, "README.md")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	card := modelcard.Default(spaceTitle(sc.Spec.Name), detectAppFile(sc.Spec))
	card.Frontmatter.SDK = s.sdk
	text, err := card.MarshalText()
	if err != nil {
		return err
	}
	slog.Info("writing starter space card", "space", s.space)
	return client.CommitFiles(ctx, repo, revision, "Add space configuration",
		[]hub.CommitFile{{Path: "README.md", Content: text}})
}

// ArchiveArtifacts mirrors the results and model dirs to an object store
// URL (s3://, azblob:// or a local path). Directories that do not exist
// locally are skipped.
func ArchiveArtifacts(ctx context.Context, spec *pipeline.Spec, creds *credentials.Credentials, url string) error {
	store, err := storage.Open(ctx, url, storageOptions(creds))
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}
	for _, dir := range []string{spec.Paths.Results, spec.Paths.Model} {
		src := utils.ResolvePath(dir, spec.Dir)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := store.UploadDir(ctx, src, dir); err != nil {
			return err
		}
	}
	return nil
}

// defaultSyncPairs returns the standard layout: the app at the space root,
// the model under Model, the training results under Metrics.
func defaultSyncPairs(spec *pipeline.Spec) []SyncPair {
	return []SyncPair{
		{From: spec.Paths.App, To: "/"},
		{From: spec.Paths.Model, To: "Model"},
		{From: spec.Paths.Results, To: "Metrics"},
	}
}

// storageOptions maps the loaded credentials onto the store config.
func storageOptions(creds *credentials.Credentials) storage.Options {
	return storage.Options{
		S3: storage.S3Config{
			Endpoint:        creds.AWSEndpointURL,
			Region:          creds.AWSRegion,
			AccessKeyID:     creds.AWSAccessKeyID,
			SecretAccessKey: creds.AWSSecretAccessKey,
		},
		Azure: storage.AzureConfig{
			Account: creds.AzureStorageAccount,
			Key:     creds.AzureStorageKey,
		},
	}
}

// spaceTitle renders a project name as a card title.
func spaceTitle(name string) string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(cleaned)
}

// detectAppFile finds the entry point the space should launch: app.py when
// present, otherwise the first Python file in the app dir.
func detectAppFile(spec *pipeline.Spec) string {
	entries, err := os.ReadDir(spec.AppDir())
	if err != nil {
		return "app.py"
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		if e.Name() == "app.py" {
			return "app.py"
		}
		candidates = append(candidates, e.Name())
	}
	if len(candidates) == 0 {
		return "app.py"
	}
	sort.Strings(candidates)
	return candidates[0]
}
