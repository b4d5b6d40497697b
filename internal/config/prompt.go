package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// StdinIsTerminal 判断是否可以交互式提问；管道/重定向输入时跳过提问，直接使用配置文件。
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompt 按原脚本的顺序询问本轮要执行的阶段，输入无效时重复提问。
// 未被询问的字段保持 run 中的原值。
func Prompt(in io.Reader, out io.Writer, run RunConfig) (RunConfig, error) {
	p := prompter{r: bufio.NewReader(in), w: out}

	var err error
	if run.LevelUpgrade.Enabled, err = p.yesNo("Upgrade Level (Y/N): "); err != nil {
		return run, err
	}
	if run.LevelUpgrade.Enabled {
		if run.LevelUpgrade.Count, err = p.count("Enter the number of times to upgrade level: "); err != nil {
			return run, err
		}
	}

	if run.TappingUpgrade.Enabled, err = p.yesNo("Auto Upgrade Tapping (Y/N): "); err != nil {
		return run, err
	}
	if run.TappingUpgrade.Enabled {
		if run.TappingUpgrade.DamageCount, err = p.count("Damage Upgrade (number of levels to upgrade): "); err != nil {
			return run, err
		}
		if run.TappingUpgrade.LimitCount, err = p.count("Limit Upgrade (number of levels to upgrade): "); err != nil {
			return run, err
		}
	}

	if run.AutoTap.Enabled, err = p.yesNo("Auto Tapping (Y/N): "); err != nil {
		return run, err
	}
	return run, nil
}

type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func (p prompter) line(question string) (string, error) {
	fmt.Fprint(p.w, question)
	s, err := p.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (p prompter) yesNo(question string) (bool, error) {
	for {
		s, err := p.line(question)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(s) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.w, "Invalid input. Please enter one of y, n")
	}
}

func (p prompter) count(question string) (int, error) {
	for {
		s, err := p.line(question)
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(s)
		if convErr == nil && n >= 0 {
			return n, nil
		}
		fmt.Fprintln(p.w, "Invalid input. Please enter a number.")
	}
}
