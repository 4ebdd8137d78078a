package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/carrierchain/core/model"
	"github.com/kilianp07/carrierchain/core/notify"
)

// TestIntegrationOfferRoundTrip sends an offer through a real Mosquitto
// broker and reads the carrier's reply back on the response topic.
func TestIntegrationOfferRoundTrip(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:1.6",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	var engine *PahoClient
	for i := 0; i < 5; i++ {
		engine, err = NewPahoClient(Config{Broker: broker, ClientID: "engine"}, nil)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer engine.Disconnect()

	responses := make(chan ResponseMessage, 1)
	if err := engine.ListenResponses(ctx, func(_ context.Context, m ResponseMessage) {
		responses <- m
	}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	carrier := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("carrier-c1"))
	if tok := carrier.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("carrier connect: %v", tok.Error())
	}
	defer carrier.Disconnect(250)

	offers := make(chan OfferMessage, 1)
	tok := carrier.Subscribe("carrier/c1/offer", 1, func(_ paho.Client, m paho.Message) {
		var msg OfferMessage
		if err := json.Unmarshal(m.Payload(), &msg); err == nil {
			offers <- msg
		}
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("carrier subscribe: %v", tok.Error())
	}

	n := NewNotifier(engine)
	if _, err := n.NotifyCarrier(ctx, "c1", "o1", notify.Offer{OrderID: "o1", CarrierID: "c1", Position: 1}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case got := <-offers:
		if got.Type != MessageOffer || got.Offer.OrderID != "o1" {
			t.Fatalf("unexpected offer %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for offer")
	}

	reply := carrier.Publish("carrier/c1/response", 1, false, `{"order_id":"o1","outcome":"accepted"}`)
	if reply.Wait() && reply.Error() != nil {
		t.Fatalf("carrier publish: %v", reply.Error())
	}

	select {
	case got := <-responses:
		if got.CarrierID != "c1" || got.Outcome != model.EntryAccepted {
			t.Fatalf("unexpected response %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for response")
	}
}
