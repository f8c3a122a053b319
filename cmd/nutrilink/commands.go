package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/chat"
	"github.com/nutrilink/nutrilink/internal/gateway"
	"github.com/nutrilink/nutrilink/internal/media"
	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/internal/notify"
	"github.com/nutrilink/nutrilink/internal/workflow"
)

// The gateway client backs every consumer-facing interface.
var (
	_ chat.Backend      = (*gateway.Client)(nil)
	_ workflow.Analyzer = (*gateway.Client)(nil)
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "nutrilink",
		Short:        "NutriLink food analysis client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newRegisterCmd(&configPath),
		newLoginCmd(&configPath),
		newLogoutCmd(&configPath),
		newAnalyzeCmd(&configPath),
		newCaptureCmd(&configPath),
		newChatCmd(&configPath),
		newVoiceCmd(&configPath),
		newHistoryCmd(&configPath),
		newCoachCmd(&configPath),
		newNotificationsCmd(&configPath),
		newHubCmd(&configPath),
	)
	return root
}

func withApp(configPath *string, run func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(*configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(a, cmd, args)
	}
}

// bus wires the notification bus for the current identity, attaching the
// cross-context signaller when a hub is configured.
func (a *app) bus(ctx context.Context, userID string) *notify.Bus {
	var signaller notify.Signaller
	if a.cfg.Signal.HubURL != "" {
		ws, err := notify.DialSignaller(ctx, a.cfg.Signal.HubURL, a.logger)
		if err != nil {
			a.logger.Warn("Signal hub unreachable, staying local",
				zap.Error(err),
				zap.String("hub_url", a.cfg.Signal.HubURL))
		} else {
			signaller = ws
		}
	}
	return notify.New(a.store, userID, signaller, a.logger)
}

func newRegisterCmd(configPath *string) *cobra.Command {
	var fullName, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store the session identity",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			userID, err := a.gateway.Register(cmd.Context(), fullName, email, password)
			if err != nil {
				return err
			}
			identity := &models.Identity{UserID: userID, FullName: fullName}
			if err := a.store.SaveIdentity(identity); err != nil {
				return err
			}
			fmt.Printf("Registered as %s (%s)\n", fullName, userID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(configPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session identity",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			identity, err := a.gateway.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.store.SaveIdentity(identity); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", identity.FullName)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session identity",
		RunE: withApp(configPath, func(a *app, _ *cobra.Command, _ []string) error {
			return a.store.ClearIdentity()
		}),
	}
}

func runWorkflow(a *app, ctx context.Context, session *models.CaptureSession) error {
	identity := a.identity()
	bus := a.bus(ctx, identity.UserID)

	wf := workflow.New(a.gateway, identity.UserID, session, a.logger,
		workflow.WithBus(bus),
		workflow.WithObserver(func(state workflow.State) {
			fmt.Printf("... %s\n", state)
		}),
	)

	state, err := wf.Run(ctx)
	if err != nil {
		return err
	}
	if state == workflow.StateError {
		fmt.Println("Not Food Detected: our AI couldn't identify this as a meal. Retake and try again.")
		return nil
	}

	result, err := wf.Continue()
	if err != nil {
		return err
	}
	n := result.Nutrition
	fmt.Printf("%s (%.0f%% confidence)\n", n.FoodName, n.Confidence*100)
	fmt.Printf("  calories: %.0f kcal\n", n.Calories)
	fmt.Printf("  protein:  %.1f g\n", n.ProteinG)
	fmt.Printf("  carbs:    %.1f g\n", n.CarbsG)
	fmt.Printf("  fats:     %.1f g\n", n.FatsG)
	if result.FitnessSyncStatus != "" {
		fmt.Printf("  fitness sync: %s\n", result.FitnessSyncStatus)
	}
	return nil
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <image>",
		Short: "Upload a food photo for nutrition analysis",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			session := &models.CaptureSession{
				ID:        uuid.New().String(),
				Source:    models.SourceFile,
				Filename:  filepath.Base(args[0]),
				Raw:       raw,
				CreatedAt: time.Now(),
			}
			return runWorkflow(a, cmd.Context(), session)
		}),
	}
}

func newCaptureCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture a frame from the camera and analyze it",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			provider := a.mediaProvider()

			var frame []byte
			err := media.WithCamera(cmd.Context(), provider, func(stream *media.Stream) error {
				var captureErr error
				frame, captureErr = provider.CaptureFrame(cmd.Context(), stream)
				return captureErr
			})
			if err != nil {
				return err
			}

			session := &models.CaptureSession{
				ID:        uuid.New().String(),
				Source:    models.SourceCamera,
				Filename:  "capture.jpg",
				Raw:       frame,
				CreatedAt: time.Now(),
			}
			return runWorkflow(a, cmd.Context(), session)
		}),
	}
}

func printTranscriptTail(transcript []models.ChatMessage, n int) {
	start := len(transcript) - n
	if start < 0 {
		start = 0
	}
	for _, msg := range transcript[start:] {
		fmt.Printf("%s: %s\n", msg.Role, msg.Content)
	}
}

func newChatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a text turn to the nutrition assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, args []string) error {
			identity := a.identity()
			session := chat.NewSession(a.gateway, identity.UserID, a.logger)
			session.Rehydrate(cmd.Context())

			if err := session.SendText(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			printTranscriptTail(session.Transcript(), 2)
			return nil
		}),
	}
}

func newVoiceCmd(configPath *string) *cobra.Command {
	var record bool
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "voice [audio.wav]",
		Short: "Send a voice turn, from a file or a live recording",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, args []string) error {
			var clip *media.AudioClip
			switch {
			case record:
				provider := a.mediaProvider()
				recording, err := provider.StartRecording(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Recording for %s...\n", duration)
				time.Sleep(duration)
				clip, err = recording.Stop(cmd.Context())
				if err != nil {
					return err
				}
			case len(args) == 1:
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read audio: %w", err)
				}
				clip = &media.AudioClip{Filename: filepath.Base(args[0]), Data: data}
			default:
				return fmt.Errorf("provide an audio file or --record")
			}

			identity := a.identity()
			session := chat.NewSession(a.gateway, identity.UserID, a.logger)
			session.Rehydrate(cmd.Context())

			if err := session.SendVoice(cmd.Context(), clip); err != nil {
				return err
			}
			printTranscriptTail(session.Transcript(), 3)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&record, "record", false, "record from the microphone")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "recording length with --record")
	return cmd
}

func newHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List logged meals",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			identity := a.identity()
			entries, err := a.gateway.History(cmd.Context(), identity.UserID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No meals logged yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-24s %6.0f kcal  (P %.1fg / C %.1fg / F %.1fg)\n",
					e.Timestamp, e.FoodName, e.Calories,
					e.Nutrition.ProteinG, e.Nutrition.CarbsG, e.Nutrition.FatsG)
			}
			return nil
		}),
	}
}

func newCoachCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "coach",
		Short: "Fetch the coaching payload",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			identity := a.identity()
			payload, err := a.gateway.Coach(cmd.Context(), identity.UserID)
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}),
	}
}

func newNotificationsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show notifications",
		RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
			identity := a.identity()
			bus := a.bus(cmd.Context(), identity.UserID)
			list, err := bus.Notifications()
			if err != nil {
				return err
			}
			for _, n := range list {
				marker := " "
				if n.Unread {
					marker = "*"
				}
				fmt.Printf("%s %s: %s (%s)\n", marker, n.Title, n.Message, n.CreatedLabel)
			}
			return nil
		}),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "read",
			Short: "Mark all notifications as read",
			RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
				identity := a.identity()
				return a.bus(cmd.Context(), identity.UserID).MarkAllRead()
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear all notifications",
			RunE: withApp(configPath, func(a *app, cmd *cobra.Command, _ []string) error {
				identity := a.identity()
				return a.bus(cmd.Context(), identity.UserID).Clear()
			}),
		},
	)
	return cmd
}

func newHubCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hub",
		Short: "Run the cross-context signal hub",
		RunE: withApp(configPath, func(a *app, _ *cobra.Command, _ []string) error {
			hub := notify.NewHub(a.logger)
			a.logger.Info("Signal hub listening",
				zap.String("addr", a.cfg.Signal.ListenAddr))
			return http.ListenAndServe(a.cfg.Signal.ListenAddr, hub.Router())
		}),
	}
}
