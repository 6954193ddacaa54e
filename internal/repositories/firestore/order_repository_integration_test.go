//go:build integration

package firestore

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/platform/config"
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestOrderRepositoryConfirmPaymentIntegration(t *testing.T) {
	provider := emulatorProvider(t, "watch-orders-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	products, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if _, err := products.Insert(ctx, domain.Product{ID: "p1", Name: "Diver", Price: 30000, Stock: 5, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := products.Insert(ctx, domain.Product{ID: "p2", Name: "Dress", Price: 10000, Stock: 1, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	order := domain.Order{
		ID:     "o1",
		UserID: "u1",
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Diver", UnitPrice: 30000, Quantity: 2},
			{ProductID: "p2", Name: "Dress", UnitPrice: 10000, Quantity: 3},
			{ProductID: "gone", Name: "Removed", UnitPrice: 100, Quantity: 1},
		},
		Totals:        domain.ComputeTotals(90100, 0),
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: domain.PaymentMethodRazorpay,
		Status:        domain.OrderPending,
		Shipping:      domain.ShippingDetails{Name: "A", Phone: "1", Email: "a@example.com", Address: "x", Pincode: "1"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := orders.Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if err := orders.SetGatewayOrder(ctx, "o1", domain.PaymentMethodRazorpay, "order_gw_1", now); err != nil {
		t.Fatalf("set gateway order id: %v", err)
	}
	found, err := orders.FindByGatewayOrderID(ctx, "order_gw_1")
	if err != nil || found.ID != "o1" {
		t.Fatalf("find by gateway order id: %v %+v", err, found)
	}

	const workers = 4
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitioned int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			res, err := orders.ConfirmPayment(ctx, repositories.ConfirmPaymentRequest{OrderID: "o1", PaymentID: "pay_1", Now: now})
			if err != nil {
				t.Errorf("confirm: %v", err)
				return
			}
			if res.Transitioned {
				mu.Lock()
				transitioned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if transitioned != 1 {
		t.Fatalf("expected exactly one transition, got %d", transitioned)
	}

	stored, err := orders.FindByID(ctx, "o1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if stored.PaymentStatus != domain.PaymentPaid || stored.Status != domain.OrderConfirmed || stored.Gateway.PaymentID != "pay_1" {
		t.Fatalf("unexpected stored order %+v", stored)
	}

	p1, _ := products.Get(ctx, "p1")
	p2, _ := products.Get(ctx, "p2")
	if p1.Stock != 3 {
		t.Fatalf("expected p1 stock 3, got %d", p1.Stock)
	}
	if p2.Stock != 0 {
		t.Fatalf("expected p2 stock clamped at 0, got %d", p2.Stock)
	}
}

func emulatorProvider(t *testing.T, project string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	infoCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(infoCtx, "docker", "info").Run(); err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		emulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("start firestore emulator: %v - %s", err, out)
	}
	containerID := strings.TrimSpace(string(out))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.CommandContext(ctx, "docker", "stop", containerID).Run()
	})

	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(30 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("firestore emulator at %s not ready", endpoint)
		}
		time.Sleep(200 * time.Millisecond)
	}

	provider := pfirestore.NewProvider(config.FirestoreConfig{ProjectID: project, EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}
