// Command agent-manager is the orchestrator process: it listens on the
// framed Unix-socket transport, owns the in-process worker pool and tool
// registry, and exposes a thin debug/status HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/agentmanager"
	"github.com/agentmesh/mcpbus/internal/collab"
	"github.com/agentmesh/mcpbus/internal/common/config"
	"github.com/agentmesh/mcpbus/internal/common/logger"
	"github.com/agentmesh/mcpbus/internal/containerexec"
	"github.com/agentmesh/mcpbus/internal/eventbus"
	"github.com/agentmesh/mcpbus/internal/tools"
	"github.com/agentmesh/mcpbus/internal/transport"
	"github.com/agentmesh/mcpbus/pkg/mcp"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger.
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting agent-manager")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect to the optional NATS event bus.
	bus, err := eventbus.Connect(cfg.NATS, log)
	if err != nil {
		log.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer bus.Close()
	if bus.Enabled() {
		log.Info("connected to nats event bus")
	}

	// 4. Optionally connect to Docker for the execute-code tool.
	var runner tools.CodeRunner = tools.SubprocessRunner{}
	if cfg.Docker.Enabled {
		dockerClient, err := containerexec.NewClient(cfg.Docker, log)
		if err != nil {
			log.Fatal("failed to initialize docker client", zap.Error(err))
		}
		defer dockerClient.Close()
		if err := dockerClient.Ping(ctx); err != nil {
			log.Fatal("failed to connect to docker daemon", zap.Error(err))
		}
		log.Info("connected to docker daemon")
		runner = &tools.DockerRunner{Client: dockerClient, Image: cfg.Docker.Image}
	}

	// 5. Build the tool registry and register the built-in tools.
	toolRegistry := tools.NewRegistry(log)
	tools.RegisterBuiltins(toolRegistry, cfg.Tools, nil /* no automation backend wired */, runner)
	log.Info("registered built-in tools", zap.Int("count", len(toolRegistry.Descriptors())))

	// 6. Build the agent manager and seed the default worker pool.
	manager := agentmanager.NewManager(log, agentmanager.WithEventPublisher(bus))
	if err := agentmanager.RegisterDefaultWorkers(manager); err != nil {
		log.Fatal("failed to register default workers", zap.Error(err))
	}
	log.Info("registered default workers")

	// 6b. LRU conversation-state cache and TTL prompt-response cache (spec
	// §3/§5/§9): every task-request is recorded as one conversation turn,
	// keyed by the request's context request-id, evicted LRU-by-last-activity.
	conversations := collab.NewConversationStore(cfg.Bridge.ConversationCacheCap)
	prompts := collab.NewPromptCache(time.Hour)

	// 7. Start the framed transport server.
	srv := transport.NewServer(cfg.Transport.SocketPath, cfg.Transport.MaxFrameBytes, func(ctx context.Context, conn *transport.Conn, msg *mcp.Message) error {
		return handleInbound(ctx, conn, msg, manager, conversations, prompts)
	}, log)
	srv.SetBroadcaster(bus)
	if err := srv.Listen(); err != nil {
		log.Fatal("failed to listen on transport socket", zap.Error(err))
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Error("transport server stopped", zap.Error(err))
		}
	}()
	log.Info("transport server listening", zap.String("socket_path", cfg.Transport.SocketPath))

	// 8. Thin debug/status HTTP surface.
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/status", func(c *gin.Context) {
		status, _ := manager.Status("")
		c.JSON(http.StatusOK, gin.H{
			"workers":            len(status.Workers),
			"recent_delegations": status.RecentDelegations,
			"tools":              toolRegistry.Descriptors(),
			"conversations":      conversations.Len(),
		})
	})

	port := cfg.Server.Port
	if port == 0 {
		port = 8083
	}
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}
	go func() {
		log.Info("http debug server listening", zap.Int("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http debug server stopped", zap.Error(err))
		}
	}()

	// 9. Wait for a shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down agent-manager")

	// 10. Graceful shutdown.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	manager.Shutdown(shutdownCtx)
	if err := srv.Close(); err != nil {
		log.Error("transport server close error", zap.Error(err))
	}
	srv.Wait(5 * time.Second)

	log.Info("agent-manager stopped")
}

// handleInbound routes an inbound framed message in the in-process
// orchestrator: it is the transport.Handler this process installs on its
// Server. Most message kinds here are the ones a co-located worker pool
// answers directly instead of crossing a bridge connection (task-request is
// executed through the agent manager's router; status-request answers from
// the manager's own state). Other kinds, agent-query included, are ignored.
func handleInbound(ctx context.Context, conn *transport.Conn, msg *mcp.Message, manager *agentmanager.Manager, conversations *collab.ConversationStore, prompts *collab.PromptCache) error {
	switch msg.MessageType {
	case mcp.MessageTypeTaskRequest:
		var req mcp.TaskRequest
		if err := mcp.DecodePayload(msg, &req); err != nil {
			return err
		}

		if mcp.RequiresUnsupportedDelivery(msg.Delivery) {
			resp := &mcp.TaskResponse{
				TaskID: req.TaskID, Status: mcp.StatusFailed, ErrorCode: mcp.ErrConfigurationError,
				ErrorMessage: mcp.ErrUnsupportedGuarantee.Error(),
			}
			reply := mcp.WithPayload(*msg, *resp)
			reply.ID = mcp.NewMessageID()
			reply.CorrelationID = msg.ID
			reply.Sender, reply.Recipient = msg.Recipient, msg.Sender
			reply.MessageType = mcp.MessageTypeTaskResponse
			return conn.Send(reply)
		}
		params, _ := req.Parameters.(string)

		convID := msg.Context.RequestID
		conversations.AppendMessage(convID, msg.Sender, collab.ChatMessage{Role: "task", Content: req.TaskType})

		promptKey := prompts.Key(req.TaskType, conversations.GetOrCreate(convID, msg.Sender).Messages)
		if cached, ok := prompts.Get(promptKey); ok {
			conversations.AppendMessage(convID, msg.Sender, collab.ChatMessage{Role: "assistant", Content: cached.Content})
			resp := &mcp.TaskResponse{TaskID: req.TaskID, Status: mcp.StatusCompleted, Result: cached.Content}
			reply := mcp.WithPayload(*msg, *resp)
			reply.ID = mcp.NewMessageID()
			reply.CorrelationID = msg.ID
			reply.Sender, reply.Recipient = msg.Recipient, msg.Sender
			reply.MessageType = mcp.MessageTypeTaskResponse
			return conn.Send(reply)
		}

		resp, err := manager.ExecuteTask(ctx, params, msg.Context, req.Priority, req.PreferredAgent)
		if err != nil && resp == nil {
			resp = &mcp.TaskResponse{TaskID: req.TaskID, Status: mcp.StatusFailed, ErrorCode: mcp.ErrAgentError, ErrorMessage: err.Error()}
		}
		if resp.Status == mcp.StatusCompleted {
			if text, ok := resp.Result.(string); ok {
				prompts.Put(promptKey, &collab.ChatResult{Content: text})
				conversations.AppendMessage(convID, msg.Sender, collab.ChatMessage{Role: "assistant", Content: text})
			}
		}
		reply := mcp.WithPayload(*msg, *resp)
		reply.ID = mcp.NewMessageID()
		reply.CorrelationID = msg.ID
		reply.Sender, reply.Recipient = msg.Recipient, msg.Sender
		reply.MessageType = mcp.MessageTypeTaskResponse
		return conn.Send(reply)
	case mcp.MessageTypeStatusRequest:
		status, _ := manager.Status("")
		reply := mcp.WithPayload(*msg, map[string]interface{}{
			"workers":             len(status.Workers),
			"recent_delegations":  status.RecentDelegations,
		})
		reply.ID = mcp.NewMessageID()
		reply.CorrelationID = msg.ID
		reply.Sender, reply.Recipient = msg.Recipient, msg.Sender
		reply.MessageType = mcp.MessageTypeStatusResponse
		return conn.Send(reply)
	default:
		return nil
	}
}
