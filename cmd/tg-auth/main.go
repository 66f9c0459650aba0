package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/session/tdesktop"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/mdp/qrterminal/v3"

	"github.com/mm-osint/newswire/internal/config"
	"github.com/mm-osint/newswire/internal/database"
	"github.com/mm-osint/newswire/internal/telegram"
)

func main() {
	fmt.Println("=== newswire telegram auth ===")
	fmt.Println("authenticates a telegram account and stores the session for the collector")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	// try to detect telegram desktop
	tdataPath := telegramDesktopPath()
	accounts, tdataErr := tdesktop.Read(tdataPath, nil)

	// if default path failed, try asking user
	if tdataErr != nil || len(accounts) == 0 {
		fmt.Printf("no telegram desktop data at: %s\n", tdataPath)
		fmt.Print("enter telegram desktop path (or press enter to skip): ")
		customPath, _ := reader.ReadString('\n')
		customPath = strings.TrimSpace(customPath)

		if customPath != "" {
			if !strings.HasSuffix(customPath, "tdata") {
				customPath = filepath.Join(customPath, "tdata")
			}
			accounts, tdataErr = tdesktop.Read(customPath, nil)
			if tdataErr == nil && len(accounts) > 0 {
				tdataPath = customPath
			}
		}
	}

	method := "phone"

	if tdataErr == nil && len(accounts) > 0 {
		fmt.Printf("\ndetected %d telegram desktop session(s) at: %s\n", len(accounts), tdataPath)
		fmt.Println()
		fmt.Println("choose authentication method:")
		fmt.Println("  1. import telegram desktop session (no code needed)")
		fmt.Println("  2. log in with phone number (sms/code)")
		fmt.Println("  3. log in by scanning a qr code with the telegram app")
		fmt.Print("\nenter choice [1]: ")

		choice, _ := reader.ReadString('\n')
		switch strings.TrimSpace(choice) {
		case "2":
			method = "phone"
		case "3":
			method = "qr"
		default:
			method = "tdata"
		}
	} else {
		fmt.Println("no telegram desktop session found")
		fmt.Println()
		fmt.Println("choose authentication method:")
		fmt.Println("  1. log in with phone number (sms/code)")
		fmt.Println("  2. log in by scanning a qr code with the telegram app")
		fmt.Print("\nenter choice [1]: ")

		choice, _ := reader.ReadString('\n')
		if strings.TrimSpace(choice) == "2" {
			method = "qr"
		}
	}

	var data *session.Data
	var username string

	switch method {
	case "tdata":
		data, err = importTData(accounts, reader)
	case "qr":
		apiID, apiHash := apiCredentials(cfg, reader)
		data, username, err = loginWithQR(ctx, apiID, apiHash, reader)
	default:
		apiID, apiHash := apiCredentials(cfg, reader)
		data, username, err = loginWithPhone(ctx, apiID, apiHash, reader)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✓ authentication successful!")
	if username != "" {
		fmt.Printf("logged in as: @%s\n", username)
	}

	// Store where the collector restores from. A dead database is not
	// fatal here, the printed session string still covers that machine.
	db, dbErr := database.New(ctx, cfg.DatabaseURL)
	if dbErr != nil {
		fmt.Printf("\nwarning: could not reach the database (%v)\n", dbErr)
		fmt.Println("the session was NOT stored, use the session string below instead")
	} else {
		defer db.Close()
		if err := telegram.SaveSessionData(db.GORM, data); err != nil {
			fmt.Printf("error storing session: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("session stored in the database, the collector can now run headless")
	}

	sessionString, err := telegram.EncodeSessionString(data)
	if err != nil {
		fmt.Printf("error encoding session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nsession string (seeds TG_SESSION_STRING on other machines):")
	fmt.Println("---")
	fmt.Println(sessionString)
	fmt.Println("---")
	fmt.Println("\n⚠️  keep this secret! it provides full access to your telegram account")
}

// telegramDesktopPath returns the default Telegram Desktop data directory.
func telegramDesktopPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default: // linux
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}

// apiCredentials takes API ID and Hash from the environment or prompts for them.
func apiCredentials(cfg *config.Config, reader *bufio.Reader) (int, string) {
	apiID := cfg.TGApiID
	apiHash := cfg.TGApiHash

	if apiID == 0 {
		fmt.Print("enter your api_id (from https://my.telegram.org): ")
		s, _ := reader.ReadString('\n')
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			fmt.Printf("error: invalid api_id: %v\n", err)
			os.Exit(1)
		}
		apiID = id
	}
	if apiHash == "" {
		fmt.Print("enter your api_hash: ")
		s, _ := reader.ReadString('\n')
		apiHash = strings.TrimSpace(s)
	}

	return apiID, apiHash
}

// importTData converts a Telegram Desktop account into session data without
// touching the network.
func importTData(accounts []tdesktop.Account, reader *bufio.Reader) (*session.Data, error) {
	account := accounts[0]

	if len(accounts) == 1 {
		fmt.Println("\nusing the only available account")
	} else {
		fmt.Printf("\nfound %d telegram accounts\n", len(accounts))
		fmt.Print("select account number [1]: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		if choice != "" {
			n, err := strconv.Atoi(choice)
			if err == nil && n >= 1 && n <= len(accounts) {
				account = accounts[n-1]
			}
		}
	}

	fmt.Println("importing telegram desktop session...")
	return session.TDesktopSession(account)
}

// loginWithPhone runs the interactive code login and captures the resulting
// session from the in-memory store.
func loginWithPhone(ctx context.Context, apiID int, apiHash string, reader *bufio.Reader) (*session.Data, string, error) {
	storage := &session.StorageMemory{}
	client := tgclient.NewClient(apiID, apiHash, tgclient.Options{
		SessionStorage: storage,
	})

	var data *session.Data
	var username string

	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(&terminalAuth{reader: reader}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}

		if self, err := client.Self(ctx); err == nil {
			username = self.Username
		}

		loader := session.Loader{Storage: storage}
		loaded, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		data = loaded
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return data, username, nil
}

// loginWithQR renders a login QR code in the terminal and waits for the
// telegram app on the phone to scan it.
func loginWithQR(ctx context.Context, apiID int, apiHash string, reader *bufio.Reader) (*session.Data, string, error) {
	storage := &session.StorageMemory{}
	dispatcher := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(dispatcher)

	client := tgclient.NewClient(apiID, apiHash, tgclient.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})

	var data *session.Data
	var username string

	err := client.Run(ctx, func(ctx context.Context) error {
		_, err := client.QR().Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			fmt.Println("\nscan with the telegram app (settings > devices > link desktop device):")
			fmt.Println()
			qrterminal.GenerateHalfBlock(token.URL(), qrterminal.L, os.Stdout)
			return nil
		})
		if tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
			pwd, perr := (&terminalAuth{reader: reader}).Password(ctx)
			if perr != nil {
				return perr
			}
			_, err = client.Auth().Password(ctx, pwd)
		}
		if err != nil {
			return err
		}

		if self, err := client.Self(ctx); err == nil {
			username = self.Username
		}

		loader := session.Loader{Storage: storage}
		loaded, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		data = loaded
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return data, username, nil
}

// terminalAuth prompts on stdin for each step of the phone login flow.
type terminalAuth struct {
	reader *bufio.Reader
}

func (a *terminalAuth) Phone(ctx context.Context) (string, error) {
	fmt.Print("enter your phone number (with country code, e.g. +1234567890): ")
	phone, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(phone), nil
}

func (a *terminalAuth) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	fmt.Print("enter the code telegram sent you: ")
	code, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

func (a *terminalAuth) Password(ctx context.Context) (string, error) {
	fmt.Print("enter your 2fa password: ")
	password, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}

func (a *terminalAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return nil
}

func (a *terminalAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, fmt.Errorf("signing up new accounts is not supported")
}
