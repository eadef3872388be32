package database

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

var FirebaseApp *firebase.App
var RTDB *db.Client
var Firestore *firestore.Client

// ConnectFirebase initializes the Firebase app plus the two chat backends:
// the Realtime Database client (message logs) and a Firestore client
// (thread summaries). With no GOOGLE_APPLICATION_CREDENTIALS set it falls
// back to Application Default Credentials.
func ConnectFirebase(ctx context.Context) {
	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	databaseURL := os.Getenv("FIREBASE_DATABASE_URL")
	if projectID == "" || databaseURL == "" {
		log.Fatal("❌ FIREBASE_PROJECT_ID or FIREBASE_DATABASE_URL not set in environment variables")
	}

	cfg := &firebase.Config{ProjectID: projectID, DatabaseURL: databaseURL}

	var opts []option.ClientOption
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		log.Fatal("❌ Firebase app init error:", err)
	}
	FirebaseApp = app

	rtdb, err := app.Database(ctx)
	if err != nil {
		log.Fatal("❌ Firebase Realtime Database init error:", err)
	}
	RTDB = rtdb

	fs, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		log.Fatal("❌ Firestore init error:", err)
	}
	Firestore = fs

	log.Printf("✅ Firebase connected (project: %s)", projectID)
}

// CloseFirebase releases the Firestore client. The RTDB client holds no
// closable resources.
func CloseFirebase() {
	if Firestore != nil {
		if err := Firestore.Close(); err != nil {
			log.Println("firestore close:", err)
		}
	}
}
