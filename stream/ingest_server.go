// stream/ingest_server.go
package stream

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Константы для WebSocket-соединения
const (
	// Время ожидания записи сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания сообщения от клиента
	pongWait = 60 * time.Second

	// Период отправки пинг-сообщений
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

// IngestMessage — кадр протокола потокового приема транзакций
type IngestMessage struct {
	Type string `json:"type"` // "transaction", "ping"

	TransactionID   string  `json:"transactionId,omitempty"`
	CountryCode     string  `json:"countryCode,omitempty"`
	LoanID          string  `json:"loanId,omitempty"`
	TransactionType string  `json:"transactionType,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	TransactionDate string  `json:"transactionDate,omitempty"` // YYYY-MM-DD
	BeneficiaryID   string  `json:"beneficiaryId,omitempty"`
	Sector          string  `json:"sector,omitempty"`
	Status          string  `json:"status,omitempty"`
	Source          string  `json:"source,omitempty"`
}

// IngestAck — подтверждение приема кадра
type IngestAck struct {
	Type          string `json:"type"` // "ack", "error", "pong"
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Клиент потокового приема
type Client struct {
	ID     string
	Socket *websocket.Conn
	Send   chan []byte
}

// IngestServer принимает транзакции по WebSocket и складывает их в
// staging-таблицу transactions. Дальнейшую обработку выполняет штатный
// батчевый прогон: поток — только точка входа сырых данных
type IngestServer struct {
	db      *sql.DB
	clients map[string]*Client
	mutex   sync.Mutex

	accepted int64
	rejected int64
}

// Конфигурация WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewIngestServer создает новый экземпляр IngestServer
func NewIngestServer(db *sql.DB) *IngestServer {
	return &IngestServer{
		db:      db,
		clients: make(map[string]*Client),
	}
}

// HandleConnections обрабатывает установку WebSocket-соединения
func (s *IngestServer) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Ошибка при установке WebSocket-соединения:", err)
		return
	}

	client := &Client{
		ID:     r.RemoteAddr,
		Socket: conn,
		Send:   make(chan []byte, 256),
	}

	s.mutex.Lock()
	s.clients[client.ID] = client
	s.mutex.Unlock()

	log.Printf("✅ Источник %s подключился", client.ID)

	go s.readPump(client)
	go client.writePump()
}

// readPump читает кадры от источника и сохраняет транзакции в Staging
func (s *IngestServer) readPump(c *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Паника при чтении кадров источника %s: %v", c.ID, r)
		}

		s.mutex.Lock()
		if _, ok := s.clients[c.ID]; ok {
			delete(s.clients, c.ID)
			close(c.Send)
		}
		s.mutex.Unlock()

		c.Socket.Close()
		log.Printf("❌ Источник %s отключился", c.ID)
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Ошибка: %v", err)
			}
			break
		}

		var msg IngestMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("Ошибка декодирования кадра:", err)
			c.sendAck(IngestAck{Type: "error", Error: "невалидный JSON"})
			continue
		}

		switch msg.Type {
		case "ping":
			c.sendAck(IngestAck{Type: "pong"})

		case "transaction":
			if err := s.saveTransaction(msg); err != nil {
				s.count(&s.rejected)
				log.Printf("❌ Ошибка сохранения транзакции %s: %v", msg.TransactionID, err)
				c.sendAck(IngestAck{Type: "error", TransactionID: msg.TransactionID, Error: err.Error()})
				continue
			}
			s.count(&s.accepted)
			c.sendAck(IngestAck{Type: "ack", TransactionID: msg.TransactionID})

		default:
			c.sendAck(IngestAck{Type: "error", Error: "неизвестный тип кадра: " + msg.Type})
		}
	}
}

// sendAck сериализует и отправляет подтверждение клиенту
func (c *Client) sendAck(ack IngestAck) {
	if data, err := json.Marshal(ack); err == nil {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// saveTransaction сохраняет принятый кадр в staging-таблицу.
// Содержательная валидация выполняется позже, при нормализации батча
func (s *IngestServer) saveTransaction(msg IngestMessage) error {
	stmt, err := s.db.Prepare(`
		INSERT INTO transactions
		(transaction_id, country_code, loan_id, transaction_type, amount,
		currency, transaction_date, beneficiary_id, sector, status, source, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		msg.TransactionID, msg.CountryCode, msg.LoanID, msg.TransactionType,
		msg.Amount, msg.Currency, msg.TransactionDate,
		msg.BeneficiaryID, msg.Sector, msg.Status, msg.Source,
	)
	return err
}

func (s *IngestServer) count(counter *int64) {
	s.mutex.Lock()
	*counter++
	s.mutex.Unlock()
}

// Stats возвращает счетчики приема с момента запуска сервера
func (s *IngestServer) Stats() (accepted, rejected int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.accepted, s.rejected
}

// writePump отправляет подтверждения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Паника при отправке кадров источнику %s: %v", c.ID, r)
		}

		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
