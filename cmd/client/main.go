package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"minidbms/server"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Faint(true)
)

func render(status, message string) string {
	style := errStyle
	switch status {
	case "OK":
		style = okStyle
	case "PARTIAL_FAILURE", "INTERNAL_ERROR":
		style = partialStyle
	}
	return statusStyle.Render("["+status+"]") + " " + style.Render(message)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:65431", "server address")
	flag.Parse()

	client, err := server.Dial(*addr, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer client.Close()
	fmt.Println(client.Welcome)

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter command: ")
		if !in.Scan() {
			return
		}
		command := strings.TrimSpace(in.Text())
		if command == "" {
			continue
		}
		if strings.EqualFold(command, "exit") {
			fmt.Println("Closing connection...")
			return
		}
		status, message, err := client.Send(command)
		if err != nil {
			fmt.Fprintln(os.Stderr, "connection lost:", err)
			os.Exit(1)
		}
		fmt.Println(render(status, message))
	}
}
