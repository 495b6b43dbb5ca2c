package agent

import (
	"errors"
	"fmt"
	"lexipal/internal/catalog"
	"lexipal/internal/contract"
	"lexipal/internal/progress"
	"lexipal/internal/quiz"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	apologyText    = "Sorry, I encountered an error while processing your request. Please try again later."
	noGoalText     = "You don't have an active goal. Please create one first with /goal <target words> <days> <stake ETH> [difficulty]!"
	linkWalletText = "🔗 Please link your wallet first: /wallet 0xYourAddress"

	helpText = `👋 Hi! I'm your vocabulary coach. Learn words, pass three quizzes per word, and your progress is recorded on-chain.

Commands:
• /wallet [0x...] - show or link your wallet
• /goal - show your goal
• /goal <target> <days> <stake ETH> [difficulty] - create a goal
• /goal <description> - get a goal suggestion
• /checkgoal - check your goal status
• /learn [word] - pick a word to learn
• /quiz [word] - start or continue the quiz
• /skip - abandon the current word
• /progress <word> - show progress for a word
• /update <word> - record one progress step manually
• /claim - claim your stake back
• /botfund - check the bot's gas wallet
• /help - show this message

Anything else goes to the assistant.`
)

func usageFor(cmd Command) string {
	switch cmd.Kind {
	case CommandProgress:
		return "Please provide a word: /progress <word>"
	case CommandUpdate:
		return "Please specify a word to update progress for. Usage: /update <word>"
	case CommandGoal:
		return fmt.Sprintf("❌ %v\n\nUsage: /goal <target words> <days> <stake ETH> [difficulty 1-5]\nExample: /goal 10 7 0.001 2", cmd.Err)
	case CommandWallet:
		return "That doesn't look like a wallet address. Usage: /wallet 0xYourAddress"
	default:
		return helpText
	}
}

func unknownCommandText(name string) string {
	return fmt.Sprintf("❌ Unknown command %s\n\n%s", name, helpText)
}

func unknownWordText(word string) string {
	return fmt.Sprintf("\"%s\" is not in my vocabulary list. Type /learn to pick a word.", word)
}

func masteredText(word string) string {
	return fmt.Sprintf("🏆 You've already mastered \"%s\"! Type /learn to pick another word.", word)
}

func exhaustedText(c *catalog.Catalog, word string, v quiz.Verdict) string {
	meaning := ""
	if w, err := c.Lookup(word); err == nil {
		meaning = w.Meaning
	}
	parts := []string{fmt.Sprintf("The meaning of \"%s\" is: \"%s\"", word, meaning)}
	if v.Explanation != "" {
		parts = append(parts, v.Explanation)
	}
	parts = append(parts, "Let's try another word. Type /learn to continue.")
	return strings.Join(parts, "\n\n")
}

func progressText(network contract.Network, word string, res *progress.Result) string {
	var b strings.Builder
	if res.NewProgress >= quiz.MasteredLevel {
		fmt.Fprintf(&b, "🎉 Congratulations! You've mastered the word \"%s\"!", word)
	} else {
		fmt.Fprintf(&b, "Great job! Your progress for \"%s\" has been updated to level %d/%d.", word, res.NewProgress, quiz.MasteredLevel)
	}
	if res.TxHash != "" {
		fmt.Fprintf(&b, "\nTransaction: %s", network.TxURL(res.TxHash))
	}
	return b.String()
}

func progressErrorText(logger *logrus.Entry, word string, err error) string {
	switch {
	case errors.Is(err, progress.ErrNoActiveGoal):
		return noGoalText
	case errors.Is(err, progress.ErrAlreadyMastered):
		return masteredText(word)
	case errors.Is(err, progress.ErrDuplicate):
		return "That step was already recorded. Type /quiz to continue."
	case errors.Is(err, progress.ErrInFlight):
		return "⏳ Your progress update is still being processed. Please send your answer again in a minute."
	case errors.Is(err, progress.ErrTxTimeout):
		return "⏳ The transaction is taking longer than expected. Please send your answer again in a minute."
	}
	logger.WithError(err).Error("Progress update failed")
	return "Sorry, I couldn't update your progress. Please make sure you have an active goal and the word is correct, then try again."
}
