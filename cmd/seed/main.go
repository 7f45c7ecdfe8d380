package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/database"
	"github.com/ecnc-dev/task-tracker/backend/internal/seed"
	"github.com/ecnc-dev/task-tracker/backend/internal/utils"
)

func main() {
	var op int
	var n int
	var password string
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机员工, 3: 插入随机任务, 4: 从 CSV 导入任务)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&password, "password", "secret123", "随机用户的密码")
	flag.StringVar(&file, "file", "./tasks.csv", "要导入的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 连接数据库并创建 repository
	repo, err := database.Open(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, employee, err := utils.GenerateRandomUser(password, cfg.Seed.EmailDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user, employee); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的员工数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			if err := repo.CreateEmployee(utils.GenerateRandomEmployee(cfg.Seed.EmailDomain)); err != nil {
				slog.Error("无法插入员工", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入员工成功", slog.Int("count", cnt))
	case 3:
		if n <= 0 {
			slog.Error("请输入合法的任务数量")
			return
		}

		// 先获取所有员工，任务随机分配给他们
		employees, err := repo.GetAllEmployees("")
		if err != nil {
			slog.Error("无法获取员工列表", slog.String("error", err.Error()))
			return
		}
		if len(employees) == 0 {
			slog.Error("数据库中没有员工，请先执行 -op 2")
			return
		}

		ids := make([]string, len(employees))
		for i, e := range employees {
			ids[i] = e.ID
		}

		cnt := 0
		for i := 0; i < n; i++ {
			if err := repo.CreateTask(utils.GenerateRandomTask(ids)); err != nil {
				slog.Error("无法插入任务", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入任务成功", slog.Int("count", cnt))
	case 4:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "file", file, "error", err)
			return
		}
		defer f.Close()

		imported, err := seed.ImportTasks(repo, f)
		if err != nil {
			slog.Error("导入任务失败", "imported", imported, "error", err)
			return
		}

		slog.Info("导入任务完成", slog.Int("count", imported))
	default:
		slog.Error("指定的操作非法")
	}
}
