package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"digiclassroom/session/internal/api"
	"digiclassroom/session/internal/config"
	"digiclassroom/session/internal/model"
	"digiclassroom/session/internal/session"
	"digiclassroom/session/internal/tokenstore"
)

var validate = validator.New()

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newTokenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("token store init failed: %v", err)
	}
	defer cleanup()

	client := api.New(cfg.APIBaseURL, store, cfg.HTTPTimeout, cfg.AutoRefresh)
	controller := session.New(client, store)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "login":
		runLogin(ctx, controller, os.Args[2:])
	case "signup":
		runSignup(ctx, controller, os.Args[2:])
	case "logout":
		controller.Logout(ctx)
		fmt.Println("signed out")
	case "whoami":
		runWhoami(ctx, controller)
	case "passwd":
		runPasswd(ctx, controller, os.Args[2:])
	case "status":
		runStatus(ctx, cfg, controller)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sessionctl <command> [flags]

commands:
  login   -role admin|teacher|student -email <email> -password <password>
  signup  -name <name> -institution <name> -email <email> -password <password>
  logout
  whoami
  passwd  -old <password> -new <password>
  status`)
}

func newTokenStore(ctx context.Context, cfg config.Config) (tokenstore.Store, func(), error) {
	switch cfg.TokenStore {
	case "memory":
		return tokenstore.NewMemStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}
		return tokenstore.NewRedisStore(client), cleanup, nil
	default:
		return tokenstore.NewFileStore(cfg.TokenFile), func() {}, nil
	}
}

func runLogin(ctx context.Context, controller *session.Controller, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	roleFlag := fs.String("role", "", "admin, teacher or student")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	role, ok := model.ParseRole(*roleFlag)
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown role, use admin, teacher or student")
		os.Exit(2)
	}
	creds := model.Credentials{Email: *email, Password: *password}
	if err := validate.Struct(creds); err != nil {
		fmt.Fprintln(os.Stderr, "email and password are required")
		os.Exit(2)
	}

	if err := controller.Login(ctx, creds.Email, creds.Password, role); err != nil {
		failAuth(err, "login failed")
	}
	user, _ := controller.Current()
	fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)
}

func runSignup(ctx context.Context, controller *session.Controller, args []string) {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "admin name")
	institution := fs.String("institution", "", "institution name")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	_ = fs.Parse(args)

	payload := model.SignupPayload{
		Name:            *name,
		InstitutionName: *institution,
		Email:           *email,
		Password:        *password,
	}
	if err := validate.Struct(payload); err != nil {
		fmt.Fprintln(os.Stderr, "name, institution, email and a password of 8+ characters are required")
		os.Exit(2)
	}

	if err := controller.AdminSignup(ctx, payload); err != nil {
		failAuth(err, "signup failed")
	}
	user, _ := controller.Current()
	fmt.Printf("signed up %s for %s\n", user.Name, user.InstitutionName)
}

func runWhoami(ctx context.Context, controller *session.Controller) {
	controller.Bootstrap(ctx)
	user, ok := controller.Current()
	if !ok {
		fmt.Println("not signed in")
		os.Exit(1)
	}
	fmt.Printf("%s <%s> role=%s", user.Name, user.Email, user.Role)
	switch user.Role {
	case model.RoleAdmin:
		fmt.Printf(" institution=%s", user.InstitutionName)
	case model.RoleTeacher:
		fmt.Printf(" subject=%s", user.Subject)
	case model.RoleStudent:
		fmt.Printf(" roll=%s", user.RollNumber)
	}
	fmt.Println()
}

func runPasswd(ctx context.Context, controller *session.Controller, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	oldPassword := fs.String("old", "", "current password")
	newPassword := fs.String("new", "", "new password")
	_ = fs.Parse(args)

	if *oldPassword == "" || *newPassword == "" {
		fmt.Fprintln(os.Stderr, "both -old and -new are required")
		os.Exit(2)
	}

	controller.Bootstrap(ctx)
	if _, ok := controller.Current(); !ok {
		fmt.Fprintln(os.Stderr, "not signed in")
		os.Exit(1)
	}
	if err := controller.ChangePassword(ctx, *oldPassword, *newPassword); err != nil {
		failAuth(err, "password change failed")
	}
	fmt.Println("password changed")
}

// runStatus resolves the stored session once, then keeps the snapshot on
// screen until interrupted. With METRICS_ADDR set the session counters
// are served alongside.
func runStatus(ctx context.Context, cfg config.Config, controller *session.Controller) {
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	updates := controller.Subscribe()
	go controller.Bootstrap(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			switch {
			case snap.Loading:
				fmt.Println("state: resolving session...")
			case snap.User.IsZero():
				fmt.Println("state: signed out")
				if cfg.MetricsAddr == "" {
					return
				}
			default:
				fmt.Printf("state: signed in as %s (%s)\n", snap.User.Email, snap.User.Role)
				if cfg.MetricsAddr == "" {
					return
				}
			}
		}
	}
}

// failAuth maps the discriminated auth error back onto the generic
// messages the login forms always showed, with transport failures called
// out now that they are distinguishable.
func failAuth(err error, msg string) {
	if api.IsAuthFailure(err) && api.Kind(err) == api.KindUnreachable {
		fmt.Fprintf(os.Stderr, "%s: backend unreachable\n", msg)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
