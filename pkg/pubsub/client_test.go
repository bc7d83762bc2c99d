package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "gb-prod"}
	cases := []struct {
		in   string
		want string
	}{
		{in: "groupbuy-notification-events", want: "projects/gb-prod/topics/groupbuy-notification-events"},
		{in: " padded ", want: "projects/gb-prod/topics/padded"},
		{in: "projects/other/topics/events", want: "projects/other/topics/events"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := c.topicResourceName(tc.in); got != tc.want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := (&Client{}).topicResourceName("x"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	if names := topicNames(config.PubSubConfig{NotificationTopic: "  "}); len(names) != 0 {
		t.Fatalf("expected no topics, got %v", names)
	}
	if names := topicNames(config.PubSubConfig{NotificationTopic: "n"}); len(names) != 1 {
		t.Fatalf("expected one topic, got %v", names)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	cases := []struct {
		name string
		gcp  config.GCPConfig
		want int
	}{
		{name: "ambient credentials", gcp: config.GCPConfig{ProjectID: "p"}, want: 0},
		{name: "inline json", gcp: config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/ignored.json"}, want: 1},
		{name: "credentials file", gcp: config.GCPConfig{ApplicationCredentials: "/etc/gcp.json"}, want: 1},
		{name: "emulator", gcp: config.GCPConfig{PubSubEndpoint: "localhost:8085", CredentialsJSON: "{}"}, want: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(clientOptions(tc.gcp)); got != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, got)
			}
		})
	}
}
