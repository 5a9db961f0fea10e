package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"

	"chatkaro-service/internal/config"
	"chatkaro-service/internal/database"
	"chatkaro-service/internal/models"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

var sampleLines = []string{
	"Hey, how is it going?",
	"Did you see the latest build?",
	"Lunch at one?",
	"Pushing the fix now.",
	"Can someone review my change?",
	"Looks good to me.",
	"Running a bit late today.",
	"Let's sync after standup.",
}

func main() {
	numGroups := flag.Int("groups", 3, "number of group chats to create")
	numMessages := flag.Int("messages", 50, "number of messages spread over all chats")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	slog.Info("Starting database seeding...")

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	// Seed users
	slog.Info("Creating users...")
	testUsers := []struct {
		name     string
		username string
	}{
		{"Alice", "alice"},
		{"Bob", "bob"},
		{"Charlie", "charlie"},
		{"Dana", "dana"},
		{"Eve", "eve"},
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	users := make([]*models.User, 0, len(testUsers))
	for _, u := range testUsers {
		if existing, err := userRepo.FindByUsername(ctx, u.username); err == nil {
			users = append(users, existing)
			continue
		}
		user := &models.User{
			Name:      u.name,
			Username:  u.username,
			Password:  string(hashed),
			Bio:       fmt.Sprintf("Hi, I'm %s", u.name),
			AvatarURL: fmt.Sprintf("https://api.dicebear.com/9.x/initials/svg?seed=%s", u.name),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			slog.Warn("User might already exist", "username", u.username, "error", err)
			continue
		}
		slog.Info("Created user", "username", u.username, "id", user.ID)
		users = append(users, user)
	}

	if len(users) < models.GroupMinMembers {
		log.Fatal("Not enough users to seed chats")
	}

	// One direct chat per pair of users
	slog.Info("Creating direct chats...")
	var chats []*models.Chat
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			chat := &models.Chat{
				Name:    users[i].Name + "-" + users[j].Name,
				Members: []*models.User{users[i], users[j]},
			}
			if err := chatRepo.Create(ctx, chat); err != nil {
				slog.Warn("Failed to create direct chat", "error", err)
				continue
			}
			chats = append(chats, chat)
		}
	}

	// Groups with a random subset of at least three members
	slog.Info("Creating group chats...", "count", *numGroups)
	for i := 0; i < *numGroups; i++ {
		members := pickMembers(users, models.GroupMinMembers+rand.Intn(len(users)-models.GroupMinMembers+1))
		creatorID := members[0].ID
		chat := &models.Chat{
			Name:      fmt.Sprintf("group-%d", i+1),
			GroupChat: true,
			CreatorID: &creatorID,
			Members:   members,
		}
		if err := chatRepo.Create(ctx, chat); err != nil {
			slog.Warn("Failed to create group chat", "error", err)
			continue
		}
		chats = append(chats, chat)
	}

	// Messages from members of each chat
	slog.Info("Creating sample messages...", "count", *numMessages)
	for i := 0; i < *numMessages && len(chats) > 0; i++ {
		chat := chats[rand.Intn(len(chats))]
		sender := chat.Members[rand.Intn(len(chat.Members))]
		msg := &models.Message{
			Content:  sampleLines[rand.Intn(len(sampleLines))],
			SenderID: sender.ID,
			ChatID:   chat.ID,
		}
		if err := messageRepo.Create(ctx, msg); err != nil {
			slog.Warn("Failed to create message", "chatID", chat.ID, "error", err)
		}
	}

	slog.Info("Database seeding completed successfully!")
}

func pickMembers(users []*models.User, n int) []*models.User {
	shuffled := make([]*models.User, len(users))
	copy(shuffled, users)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
