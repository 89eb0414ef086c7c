package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Nil until startVersionCheck decides the check should run.
var versionCheckCh chan string

// startVersionCheck fetches the server version in the background so a drift
// notice can be printed after the command output without delaying it. Dev
// builds and non-terminal runs skip the check.
func startVersionCheck(ctx context.Context) {
	if version == "dev" || !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}
	versionCheckCh = make(chan string, 1)
	go func() {
		status, err := doJSON[statusReply](api, ctx, http.MethodGet, "/v1/status", nil)
		if err != nil || status.Version == "" || status.Version == version {
			versionCheckCh <- ""
			return
		}
		versionCheckCh <- status.Version
	}()
}

func printVersionNotice() {
	if versionCheckCh == nil {
		return
	}
	select {
	case serverVersion := <-versionCheckCh:
		if serverVersion != "" {
			yellow := color.New(color.FgYellow)
			yellow.EnableColor()
			blackOnYellow := color.New(color.BgYellow, color.FgBlack)
			blackOnYellow.EnableColor()
			fmt.Fprint(os.Stderr,
				yellow.Sprint("› ")+
					blackOnYellow.Sprint("Version drift")+
					yellow.Sprintf(" client %s does not match server %s. Run `flotilla self-update` to upgrade.", version, serverVersion)+
					"\n",
			)
		}
	case <-time.After(1 * time.Second):
	}
}
