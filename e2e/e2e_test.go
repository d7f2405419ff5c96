package e2e

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/foodbridge/dispatch/core/auction"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/travel"
	"github.com/foodbridge/dispatch/infra/metrics"
	"github.com/foodbridge/dispatch/infra/notify"
	"github.com/foodbridge/dispatch/infra/store"
	"github.com/foodbridge/dispatch/internal/eventbus"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// startInflux starts a provisioned InfluxDB 2.7 container and returns it
// along with the base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "password123",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a basic Mosquitto broker.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// Test_E2E_AuctionFlow runs a full auction round against real InfluxDB
// and Mosquitto instances: create, bid, settle, then verify the metrics
// points and the MQTT notifications both arrived.
func Test_E2E_AuctionFlow(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	if influxCont != nil {
		defer influxCont.Terminate(ctx) //nolint:errcheck
	}
	mqttCont, mqttURL := startMosquitto(ctx, t)
	if mqttCont != nil {
		defer mqttCont.Terminate(ctx) //nolint:errcheck
	}

	sink := metrics.NewInfluxSinkWithFallback(influxURL, influxToken, influxOrg, influxBucket)
	if _, ok := sink.(*metrics.InfluxSink); !ok {
		t.Fatal("influx sink fell back to nop, container not healthy")
	}

	st := store.NewMemory()
	if err := st.CreateVolunteer(ctx, model.Volunteer{ID: "v1", Name: "Ada", Karma: 80, Capacity: 40}); err != nil {
		t.Fatalf("create volunteer: %v", err)
	}
	if err := st.CreatePickupPoint(ctx, model.PickupPoint{ID: "p1", Name: "Bakery", Location: "48.137,11.575"}); err != nil {
		t.Fatalf("create pickup point: %v", err)
	}
	if err := st.CreatePickupRequest(ctx, model.PickupRequest{ID: "r1", PickupPointID: "p1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create pickup request: %v", err)
	}

	// Subscribe to the notification topics before the notifier starts.
	var mu sync.Mutex
	received := map[string]int{}
	subOpts := paho.NewClientOptions().AddBroker(mqttURL).SetClientID("e2e-sub")
	sub := paho.NewClient(subOpts)
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Skipf("mqtt subscribe connect: %v", tok.Error())
	}
	defer sub.Disconnect(250)
	tok := sub.Subscribe("e2e/auctions/+/+", 0, func(_ paho.Client, msg paho.Message) {
		mu.Lock()
		received[msg.Topic()]++
		mu.Unlock()
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	pub, err := notify.NewMqttClient(mqttURL, "e2e-pub", nil)
	if err != nil {
		t.Skipf("mqtt publish connect: %v", err)
	}
	defer pub.Close()
	bus := eventbus.New()
	defer bus.Close()
	notifier := notify.NewNotifier(pub, "e2e", 0, nil)
	notifier.Run(bus)
	defer notifier.Stop()

	coord := auction.New(st, travel.Fixed{Durations: [][]float64{{7}}}, nil,
		auction.WithSink(sink),
		auction.WithBus(bus),
	)
	a, err := coord.Create(ctx, "r1")
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	loc := model.Coordinate{Lat: 48.15, Lon: 11.6}
	if _, err := coord.SubmitBid(ctx, a.ID, "v1", true, &loc); err != nil {
		t.Fatalf("submit bid: %v", err)
	}
	res, err := coord.Process(ctx, a.ID)
	if err != nil {
		t.Fatalf("process auction: %v", err)
	}
	if res.WinnerID != "v1" {
		t.Fatalf("unexpected winner %q", res.WinnerID)
	}

	statusTopic := fmt.Sprintf("e2e/auctions/%s/status", a.ID)
	bidTopic := fmt.Sprintf("e2e/auctions/%s/bids", a.ID)
	deadline := time.Now().Add(10 * time.Second)
	for {
		mu.Lock()
		gotStatus := received[statusTopic] >= 2 // created + completed
		gotBid := received[bidTopic] >= 1
		mu.Unlock()
		if gotStatus && gotBid {
			break
		}
		if time.Now().After(deadline) {
			mu.Lock()
			snapshot := fmt.Sprintf("%v", received)
			mu.Unlock()
			t.Fatalf("notifications missing, got %s", snapshot)
		}
		time.Sleep(100 * time.Millisecond)
	}

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	transitions, err := cli.CountMeasurement(ctx, "auction_transition")
	if err != nil {
		t.Fatalf("query transitions: %v", err)
	}
	if transitions == 0 {
		t.Fatal("no auction_transition points in influx")
	}
	bids, err := cli.CountMeasurement(ctx, "auction_bid")
	if err != nil {
		t.Fatalf("query bids: %v", err)
	}
	if bids == 0 {
		t.Fatal("no auction_bid points in influx")
	}
}
