package utils

import (
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// maxLineMessages is the number of messages LINE accepts per reply or push.
const maxLineMessages = 5

type LinebotAPI interface {
	ReplyMessage(replyToken string, messages ...string) error
	PushMessage(to string, messages ...string) error
	ParseRequest(req *http.Request) ([]*linebot.Event, error)
}

type LineBotClient struct {
	client *linebot.Client
	sender *linebot.Sender
}

func NewLineBotClient(channelSecret string, channelToken string) (LinebotAPI, error) {
	client, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create line bot client: %w", err)
	}
	return &LineBotClient{
		client: client,
	}, nil
}

// NewLineBotPusher is a client whose pushed messages carry a sender name.
func NewLineBotPusher(channelSecret, channelToken, senderName string) (LinebotAPI, error) {
	client, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create line bot client: %w", err)
	}
	return &LineBotClient{
		client: client,
		sender: &linebot.Sender{Name: senderName},
	}, nil
}

func (c *LineBotClient) ReplyMessage(replyToken string, messages ...string) error {
	_, err := c.client.ReplyMessage(replyToken, c.textMessages(messages)...).Do()
	return err
}

func (c *LineBotClient) PushMessage(to string, messages ...string) error {
	_, err := c.client.PushMessage(to, c.textMessages(messages)...).Do()
	return err
}

func (c *LineBotClient) ParseRequest(req *http.Request) ([]*linebot.Event, error) {
	return c.client.ParseRequest(req)
}

func (c *LineBotClient) textMessages(texts []string) []linebot.SendingMessage {
	if len(texts) > maxLineMessages {
		texts = texts[:maxLineMessages]
	}
	out := make([]linebot.SendingMessage, 0, len(texts))
	for _, t := range texts {
		if c.sender != nil {
			out = append(out, linebot.NewTextMessage(t).WithSender(c.sender))
			continue
		}
		out = append(out, linebot.NewTextMessage(t))
	}
	return out
}
